package model

// IntentType is the classification of free text.
type IntentType string

// Available IntentType values.
const (
	IntentDevInstruction IntentType = "DEV_INSTRUCTION"
	IntentNormalChat     IntentType = "NORMAL_CHAT"
)

// Classification is the decoded classify reply.
type Classification struct {
	Type    IntentType `json:"type"`
	Targets []string   `json:"targets"`
	Summary string     `json:"summary"`
}

// DefaultClassification is used whenever classification cannot be trusted.
func DefaultClassification() Classification {
	return Classification{Type: IntentNormalChat, Targets: []string{}}
}

// FileEntry is one element of a structured generator reply. Exactly one of
// Content or Diff is expected to be set.
type FileEntry struct {
	Path    string  `json:"path" yaml:"path"`
	Content *string `json:"content,omitempty" yaml:"content,omitempty"`
	Diff    *string `json:"diff,omitempty" yaml:"diff,omitempty"`
}

// GenerationResponse is a generator reply before extraction. Files is filled
// when the reply was structured; Text always holds the raw reply.
type GenerationResponse struct {
	Files []FileEntry `json:"files,omitempty" yaml:"files,omitempty"`
	Text  string      `json:"-" yaml:"-"`
}
