// Package synthesis turns translated text into speech audio with Google Cloud
// Text-to-Speech. Clips are returned in memory together with the format they
// were requested in, so the player can validate them before rendering.
package synthesis
