package translation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"cloud.google.com/go/translate"
	"golang.org/x/text/language"
	"google.golang.org/api/option"

	"github.com/Ali-AlHumidi/speechbridge/internal/shared"
)

// Translator translates text into a target language
type Translator interface {
	Translate(ctx context.Context, text, target string) (string, error)
}

// Config contains translation parameters
type Config struct {
	// SourceLanguage pins the input language; empty lets the service detect it
	SourceLanguage string `yaml:"source_language"`
	// Model is "nmt" or "base"; empty uses the service default
	Model string `yaml:"model"`
}

// Validate validates translation configuration
func (c Config) Validate() error {
	if c.SourceLanguage != "" {
		if _, err := language.Parse(c.SourceLanguage); err != nil {
			return fmt.Errorf("invalid source language %q: %w", c.SourceLanguage, err)
		}
	}
	switch c.Model {
	case "", "nmt", "base":
	default:
		return fmt.Errorf("unknown translation model %q", c.Model)
	}
	return nil
}

// client is the subset of *translate.Client used here
type client interface {
	Translate(ctx context.Context, inputs []string, target language.Tag, opts *translate.Options) ([]translate.Translation, error)
	Close() error
}

// GoogleTranslator calls Google Cloud Translation
type GoogleTranslator struct {
	client client
	config Config
	logger *slog.Logger
}

// NewGoogleTranslator creates a Cloud Translation client
func NewGoogleTranslator(ctx context.Context, config Config, logger *slog.Logger, opts ...option.ClientOption) (*GoogleTranslator, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("%w: translation: %v", shared.ErrConfiguration, err)
	}

	c, err := translate.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: translate client: %v", shared.ErrConfiguration, err)
	}
	return newGoogleTranslator(c, config, logger), nil
}

func newGoogleTranslator(c client, config Config, logger *slog.Logger) *GoogleTranslator {
	return &GoogleTranslator{client: c, config: config, logger: logger}
}

// Translate implements Translator. Empty text is returned as is.
func (t *GoogleTranslator) Translate(ctx context.Context, text, target string) (string, error) {
	if strings.TrimSpace(target) == "" {
		return "", fmt.Errorf("%w: target language is required", shared.ErrConfiguration)
	}
	if strings.TrimSpace(text) == "" {
		return "", nil
	}

	tag, err := language.Parse(target)
	if err != nil {
		return "", fmt.Errorf("%w: invalid target language %q: %v", shared.ErrConfiguration, target, err)
	}

	opts := &translate.Options{
		Format: translate.Text,
		Model:  t.config.Model,
	}
	if t.config.SourceLanguage != "" {
		opts.Source = language.MustParse(t.config.SourceLanguage)
	}

	translations, err := t.client.Translate(ctx, []string{text}, tag, opts)
	if err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrTranslation, err)
	}
	if len(translations) == 0 {
		return "", fmt.Errorf("%w: empty response", shared.ErrTranslation)
	}

	t.logger.Debug("Translated transcript",
		slog.String("target", target),
		slog.String("detected_source", translations[0].Source.String()))

	return translations[0].Text, nil
}

// Close releases the client
func (t *GoogleTranslator) Close() error {
	return t.client.Close()
}
