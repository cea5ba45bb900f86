package engine

import (
	"context"
	"regexp"
	"strings"
)

// speakerTag matches dialogue speaker markers like "<Ada>" that indicate the
// model kept writing the transcript past its own turn.
var speakerTag = regexp.MustCompile(`<[^\s<>][^<>\n]{0,63}>`)

// MaxLength rejects responses longer than Limit characters.
type MaxLength struct {
	Limit int
}

func (v MaxLength) Name() string { return "max_length" }

func (v MaxLength) Validate(_ context.Context, response, _ string) bool {
	return len(response) > v.Limit
}

// BannedContent rejects responses containing any of the configured substrings,
// case-insensitively.
type BannedContent struct {
	Substrings []string
}

func (v BannedContent) Name() string { return "banned_content" }

func (v BannedContent) Validate(_ context.Context, response, _ string) bool {
	lowered := strings.ToLower(response)
	for _, s := range v.Substrings {
		if s == "" {
			continue
		}
		if strings.Contains(lowered, strings.ToLower(s)) {
			return true
		}
	}
	return false
}

// DialogueArtifact rejects responses that leak prompt scaffolding: speaker
// tags for other participants or source cues.
type DialogueArtifact struct{}

func (v DialogueArtifact) Name() string { return "dialogue_artifact" }

func (v DialogueArtifact) Validate(_ context.Context, response, _ string) bool {
	if strings.Contains(response, "(Sources:") {
		return true
	}
	return speakerTag.MatchString(response)
}

// DefaultValidators returns the rejection chain applied to every persona
// unless configured otherwise.
func DefaultValidators(maxChars int) []Validator {
	return []Validator{
		MaxLength{Limit: maxChars},
		DialogueArtifact{},
	}
}
