// Package translation maps final transcripts into the target language.
package translation
