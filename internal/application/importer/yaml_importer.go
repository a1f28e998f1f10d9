// Package importer parses a YAML workflow document into a workflow.Spec
// and publishes it as a new snapshot — the front door through which an
// external spec definition enters the kernel (C1).
package importer

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/smilemakc/wfkernel/internal/snapshot"
	"github.com/smilemakc/wfkernel/internal/workflow"
	"github.com/smilemakc/wfkernel/pkg/builder"
)

// YAMLSpec represents the top-level YAML workflow spec document.
type YAMLSpec struct {
	Metadata YAMLMetadata `yaml:"metadata"`
	Start    string       `yaml:"start"`
	Ends     []string     `yaml:"ends"`
	Tasks    []YAMLTask   `yaml:"tasks"`
	Arcs     []YAMLArc    `yaml:"arcs,omitempty"`
}

// YAMLMetadata carries the spec's identity.
type YAMLMetadata struct {
	ID      string `yaml:"id"`
	Name    string `yaml:"name,omitempty"`
	Version int    `yaml:"version,omitempty"`
}

// YAMLTask represents one workflow task.
type YAMLTask struct {
	ID            string      `yaml:"id"`
	PatternID     int         `yaml:"pattern_id"`
	Split         string      `yaml:"split,omitempty"` // and|xor|or
	Join          string      `yaml:"join,omitempty"`  // and|xor|or
	Guards        []YAMLGuard `yaml:"guards,omitempty"`
	CancelRegion  string      `yaml:"cancel_region,omitempty"`
	MaxIterations int         `yaml:"max_iterations,omitempty"`
}

// YAMLGuard is an arc-scoped boolean expression, evaluated by the scheduler's
// expr.Program cache.
type YAMLGuard struct {
	ArcID      string `yaml:"arc_id"`
	Expression string `yaml:"expression"`
}

// YAMLArc represents a directed control-flow edge between two tasks.
type YAMLArc struct {
	ID   string `yaml:"id,omitempty"`
	From string `yaml:"from"`
	To   string `yaml:"to"`
	Loop bool   `yaml:"loop,omitempty"`
}

// ValidationError reports a structural problem found before the spec is
// handed to workflow.Spec.Index (which enforces invariant W1).
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

var splitKinds = map[string]workflow.SplitKind{
	"and": workflow.KindAND,
	"xor": workflow.KindXOR,
	"or":  workflow.KindOR,
}

var joinKinds = map[string]workflow.JoinKind{
	"and": workflow.JoinAND,
	"xor": workflow.JoinXOR,
	"or":  workflow.JoinOR,
}

// YAMLImporter parses YAML spec documents and publishes them to the
// snapshot store.
type YAMLImporter struct {
	store *snapshot.Store
}

// NewYAMLImporter creates an importer that publishes into store.
func NewYAMLImporter(store *snapshot.Store) *YAMLImporter {
	return &YAMLImporter{store: store}
}

// ParseSpec parses a YAML document into a workflow.Spec, without
// publishing it.
func (i *YAMLImporter) ParseSpec(data []byte) (*workflow.Spec, error) {
	var y YAMLSpec
	if err := yaml.Unmarshal(data, &y); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := i.validate(&y); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	return i.convert(&y)
}

// ImportAndPublish parses data, builds a snapshot containing the single
// resulting spec, and publishes it (not yet ready — the caller still must
// MarkReady/Promote through the admission path).
func (i *YAMLImporter) ImportAndPublish(data []byte, parent snapshot.ID, hasParent bool) (snapshot.ID, error) {
	spec, err := i.ParseSpec(data)
	if err != nil {
		return snapshot.ID{}, err
	}
	terms := snapshot.NewInterner()
	for _, t := range spec.Tasks {
		terms.Intern(t.ID)
	}
	terms.Freeze()

	snap := snapshot.Build([]*workflow.Spec{spec}, terms, parent, hasParent)
	return i.store.Publish(snap)
}

func (i *YAMLImporter) validate(y *YAMLSpec) error {
	if y.Metadata.ID == "" {
		return &ValidationError{Field: "metadata.id", Message: "spec id is required"}
	}
	if y.Start == "" {
		return &ValidationError{Field: "start", Message: "start task is required"}
	}
	if len(y.Tasks) == 0 {
		return &ValidationError{Field: "tasks", Message: "at least one task is required"}
	}

	taskIDs := make(map[string]bool, len(y.Tasks))
	for idx, t := range y.Tasks {
		if t.ID == "" {
			return &ValidationError{Field: fmt.Sprintf("tasks[%d].id", idx), Message: "task id is required"}
		}
		if taskIDs[t.ID] {
			return &ValidationError{Field: fmt.Sprintf("tasks[%d].id", idx), Message: fmt.Sprintf("duplicate task id: %s", t.ID)}
		}
		taskIDs[t.ID] = true

		if t.Split != "" {
			if _, ok := splitKinds[strings.ToLower(t.Split)]; !ok {
				return &ValidationError{Field: fmt.Sprintf("tasks[%d].split", idx), Message: fmt.Sprintf("invalid split kind: %s", t.Split)}
			}
		}
		if t.Join != "" {
			if _, ok := joinKinds[strings.ToLower(t.Join)]; !ok {
				return &ValidationError{Field: fmt.Sprintf("tasks[%d].join", idx), Message: fmt.Sprintf("invalid join kind: %s", t.Join)}
			}
		}
	}

	if !taskIDs[y.Start] {
		return &ValidationError{Field: "start", Message: fmt.Sprintf("start references unknown task: %s", y.Start)}
	}
	for idx, end := range y.Ends {
		if !taskIDs[end] {
			return &ValidationError{Field: fmt.Sprintf("ends[%d]", idx), Message: fmt.Sprintf("end references unknown task: %s", end)}
		}
	}

	for idx, a := range y.Arcs {
		if a.From == "" || a.To == "" {
			return &ValidationError{Field: fmt.Sprintf("arcs[%d]", idx), Message: "arc requires from and to"}
		}
		if !taskIDs[a.From] {
			return &ValidationError{Field: fmt.Sprintf("arcs[%d].from", idx), Message: fmt.Sprintf("arc references unknown task: %s", a.From)}
		}
		if !taskIDs[a.To] {
			return &ValidationError{Field: fmt.Sprintf("arcs[%d].to", idx), Message: fmt.Sprintf("arc references unknown task: %s", a.To)}
		}
	}

	return nil
}

func (i *YAMLImporter) convert(y *YAMLSpec) (*workflow.Spec, error) {
	sb := builder.NewSpec(y.Metadata.ID, y.Start)
	for _, end := range y.Ends {
		sb.WithEnd(end)
	}

	for _, yt := range y.Tasks {
		opts := make([]builder.TaskOption, 0, len(yt.Guards)+3)
		if k, ok := splitKinds[strings.ToLower(yt.Split)]; ok {
			opts = append(opts, builder.WithSplit(k))
		}
		if k, ok := joinKinds[strings.ToLower(yt.Join)]; ok {
			opts = append(opts, builder.WithJoin(k))
		}
		if yt.CancelRegion != "" {
			opts = append(opts, builder.WithCancelRegion(yt.CancelRegion))
		}
		if yt.MaxIterations > 0 {
			opts = append(opts, builder.WithMaxIterations(yt.MaxIterations))
		}
		for _, g := range yt.Guards {
			opts = append(opts, builder.WithGuard(g.ArcID, g.Expression))
		}
		sb.AddTask(builder.NewTask(yt.ID, yt.PatternID, opts...))
	}

	for _, ya := range y.Arcs {
		opts := make([]builder.ArcOption, 0, 2)
		if ya.ID != "" {
			opts = append(opts, builder.WithArcID(ya.ID))
		}
		if ya.Loop {
			opts = append(opts, builder.AsLoop())
		}
		sb.AddArc(builder.NewArc(ya.From, ya.To, opts...))
	}

	spec, err := sb.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build spec: %w", err)
	}
	return spec, nil
}

// ExportToYAML serializes a spec back to the YAML document format.
func ExportToYAML(spec *workflow.Spec) ([]byte, error) {
	y := &YAMLSpec{
		Metadata: YAMLMetadata{ID: spec.ID},
		Start:    spec.Start,
		Ends:     spec.Ends,
	}
	for _, t := range spec.Tasks {
		yt := YAMLTask{
			ID:            t.ID,
			PatternID:     t.PatternID,
			CancelRegion:  t.CancelRegion,
			MaxIterations: t.MaxIterations,
		}
		for k, v := range splitKinds {
			if v == t.Split {
				yt.Split = k
			}
		}
		for k, v := range joinKinds {
			if v == t.Join {
				yt.Join = k
			}
		}
		for _, g := range t.Guards {
			yt.Guards = append(yt.Guards, YAMLGuard{ArcID: g.ArcID, Expression: g.Expression})
		}
		y.Tasks = append(y.Tasks, yt)
	}
	for _, a := range spec.Arcs {
		y.Arcs = append(y.Arcs, YAMLArc{ID: a.ID, From: a.From, To: a.To, Loop: a.Loop})
	}
	return yaml.Marshal(y)
}

// ParseYAMLContent strips a BOM and surrounding whitespace before parsing.
func ParseYAMLContent(data []byte) ([]byte, error) {
	content := strings.TrimSpace(strings.TrimPrefix(string(data), "\xef\xbb\xbf"))
	if content == "" {
		return nil, fmt.Errorf("empty YAML content")
	}
	return []byte(content), nil
}
