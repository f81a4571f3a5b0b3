package game

import (
	"strings"

	"golang.org/x/text/language"
)

const DefaultLanguage = "en"

// NormalizeLanguage canonicalizes a BCP 47 tag such as "pt_br" to "pt-BR".
// Empty or unparsable input falls back to DefaultLanguage.
func NormalizeLanguage(raw string) string {
	raw = strings.ReplaceAll(strings.TrimSpace(raw), "_", "-")
	if raw == "" {
		return DefaultLanguage
	}
	tag, err := language.Parse(raw)
	if err != nil || tag == language.Und {
		return DefaultLanguage
	}
	return tag.String()
}
