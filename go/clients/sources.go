package clients

import (
	"fmt"
	"sort"
	"strings"
)

// ContentSource identifies where room content comes from
type ContentSource string

const (
	// ContentSourceGenerative is the hosted generative text and speech API
	ContentSourceGenerative ContentSource = "generative"

	// ContentSourceBank is the local YAML question bank
	ContentSourceBank ContentSource = "bank"
)

// ContentSourceConfig holds configuration for a content source
type ContentSourceConfig struct {
	Source      ContentSource `json:"source"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Priority    int           `json:"priority"` // Higher priority sources are asked first
	Offline     bool          `json:"offline"`  // Usable without network access
}

// GetContentSources returns all known content sources
func GetContentSources() map[ContentSource]ContentSourceConfig {
	return map[ContentSource]ContentSourceConfig{
		ContentSourceGenerative: {
			Source:      ContentSourceGenerative,
			Name:        "Generative API",
			Description: "Hosted model that writes questions, roasts and speech",
			Priority:    100,
		},
		ContentSourceBank: {
			Source:      ContentSourceBank,
			Name:        "Question Bank",
			Description: "Pre-written questions loaded from YAML",
			Priority:    10,
			Offline:     true,
		},
	}
}

// ValidateContentSource checks if the source is valid
func ValidateContentSource(source ContentSource) bool {
	_, exists := GetContentSources()[source]
	return exists
}

// ParseContentSources turns a comma separated list such as
// "generative,bank" into sources ordered by priority, highest first.
func ParseContentSources(raw string) ([]ContentSource, error) {
	all := GetContentSources()
	seen := make(map[ContentSource]bool)
	var out []ContentSource
	for _, part := range strings.Split(raw, ",") {
		source := ContentSource(strings.ToLower(strings.TrimSpace(part)))
		if source == "" || seen[source] {
			continue
		}
		if !ValidateContentSource(source) {
			return nil, fmt.Errorf("unknown content source %q", source)
		}
		seen[source] = true
		out = append(out, source)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no content sources in %q", raw)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return all[out[i]].Priority > all[out[j]].Priority
	})
	return out, nil
}
