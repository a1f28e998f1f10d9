package builder

import (
	"fmt"

	"github.com/smilemakc/wfkernel/internal/workflow"
)

// ArcBuilder builds a single workflow.Arc.
type ArcBuilder struct {
	id   string
	from string
	to   string
	loop bool
	err  error
}

// ArcOption configures an ArcBuilder.
type ArcOption func(*ArcBuilder) error

// NewArc creates an arc builder from "from" to "to". The arc id defaults to
// "arc_{from}_{to}" unless overridden with WithArcID.
func NewArc(from, to string, opts ...ArcOption) *ArcBuilder {
	ab := &ArcBuilder{id: fmt.Sprintf("arc_%s_%s", from, to), from: from, to: to}
	for _, opt := range opts {
		if err := opt(ab); err != nil {
			ab.err = err
			return ab
		}
	}
	return ab
}

// Build constructs the final Arc.
func (ab *ArcBuilder) Build() (*workflow.Arc, error) {
	if ab.err != nil {
		return nil, ab.err
	}
	if ab.from == "" || ab.to == "" {
		return nil, fmt.Errorf("builder: arc must have both from and to")
	}
	return &workflow.Arc{ID: ab.id, From: ab.from, To: ab.to, Loop: ab.loop}, nil
}

// WithArcID overrides the auto-generated arc id.
func WithArcID(id string) ArcOption {
	return func(ab *ArcBuilder) error {
		if id == "" {
			return fmt.Errorf("builder: arc id cannot be empty")
		}
		ab.id = id
		return nil
	}
}

// AsLoop marks the arc as a back-edge eligible for bounded re-execution
// (patterns 10/28).
func AsLoop() ArcOption {
	return func(ab *ArcBuilder) error {
		ab.loop = true
		return nil
	}
}
