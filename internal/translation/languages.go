package translation

import (
	"fmt"
	"slices"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"github.com/Ali-AlHumidi/speechbridge/internal/shared"
)

// DefaultTargets are the target languages offered when none are configured
var DefaultTargets = []string{"es", "fr", "de", "zh", "ar"}

// Language is a selectable target language
type Language struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Describe returns codes with their English display names
func Describe(codes []string) []Language {
	namer := display.English.Languages()
	out := make([]Language, 0, len(codes))
	for _, code := range codes {
		name := code
		if tag, err := language.Parse(code); err == nil {
			if n := namer.Name(tag); n != "" {
				name = n
			}
		}
		out = append(out, Language{Code: code, Name: name})
	}
	return out
}

// ValidateTarget checks that target is a well-formed tag from allowed. An
// empty allowed list accepts any well-formed tag.
func ValidateTarget(target string, allowed []string) error {
	target = strings.TrimSpace(target)
	if target == "" {
		return fmt.Errorf("%w: target language is required", shared.ErrConfiguration)
	}
	if _, err := language.Parse(target); err != nil {
		return fmt.Errorf("%w: invalid target language %q", shared.ErrConfiguration, target)
	}
	if len(allowed) > 0 && !slices.Contains(allowed, target) {
		return fmt.Errorf("%w: target language %q is not one of %s",
			shared.ErrConfiguration, target, strings.Join(allowed, ", "))
	}
	return nil
}
