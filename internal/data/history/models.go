package history

import "time"

const SchemaVersion = 1

// Run records one parser invocation.
type Run struct {
	ID         string        `json:"id" yaml:"id"`
	Library    string        `json:"library" yaml:"library"`
	Parser     string        `json:"parser" yaml:"parser"`
	Input      string        `json:"input" yaml:"input"`
	Success    bool          `json:"success" yaml:"success"`
	ScopeCount int           `json:"scope_count" yaml:"scope_count"`
	Error      string        `json:"error,omitempty" yaml:"error,omitempty"`
	Duration   time.Duration `json:"duration" yaml:"duration"`
	CreatedAt  time.Time     `json:"created_at" yaml:"created_at"`
}
