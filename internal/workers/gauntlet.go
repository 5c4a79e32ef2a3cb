package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/PolarWolf314/forge/internal/factory"
	"github.com/PolarWolf314/forge/internal/kernel"
)

const (
	untitledIdea = "Untitled idea (empty input)."
	draftPrefix  = "blueprint/"
)

// skeletonStages are the placeholder phases attached to every draft.
var skeletonStages = []string{
	"research_stub",
	"blueprint_stub",
	"stress_test_stub",
	"integration_stub",
}

// Writer is the part of the vault the gauntlet needs. Drafts are always
// written as Kernel; a session that has moved on rejects the write.
type Writer interface {
	WriteAs(ctx context.Context, mode kernel.Mode, key string, value []byte) error
}

// Skeleton is the structured outline of a draft.
type Skeleton struct {
	Title  string   `json:"title"`
	Stages []string `json:"stages"`
}

// Draft is the blueprint produced for one task.
type Draft struct {
	TaskID       string   `json:"task_id"`
	Idea         string   `json:"idea"`
	FeatureBrief string   `json:"feature_brief"`
	Skeleton     Skeleton `json:"skeleton"`
	LinearBrief  string   `json:"linear_brief"`
	Status       string   `json:"status"`
	Logs         []string `json:"logs"`
}

func (d *Draft) logf(format string, args ...any) {
	d.Logs = append(d.Logs, fmt.Sprintf(format, args...))
}

// stage transforms a draft in place.
type stage func(*Draft)

// Gauntlet turns a blueprint task summary into a draft and stores it in
// the vault under blueprint/<task id>.
type Gauntlet struct {
	vault  Writer
	stages []stage
}

// NewGauntlet returns a blueprint handler that stores drafts through w.
func NewGauntlet(w Writer) *Gauntlet {
	return &Gauntlet{
		vault:  w,
		stages: []stage{intake, fixer, outline, linearize, prepare},
	}
}

// DraftKey returns the vault key for a task's draft.
func DraftKey(taskID string) string {
	return draftPrefix + taskID
}

// Build runs every stage over the task summary.
func (g *Gauntlet) Build(task factory.Task) *Draft {
	d := &Draft{TaskID: task.ID, Idea: task.Summary}
	for _, s := range g.stages {
		s(d)
	}
	return d
}

// Handle builds the draft for a blueprint task and stores it in the real
// namespace.
func (g *Gauntlet) Handle(ctx context.Context, task factory.Task) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d := g.Build(task)

	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encoding draft for %s: %w", task.ID, err)
	}
	if err := g.vault.WriteAs(ctx, kernel.Kernel, DraftKey(task.ID), data); err != nil {
		return fmt.Errorf("storing draft for %s: %w", task.ID, err)
	}
	return nil
}

// intake normalizes the idea and seeds the feature brief.
func intake(d *Draft) {
	idea := strings.TrimSpace(d.Idea)
	if idea == "" {
		idea = untitledIdea
	}
	d.Idea = idea
	if d.FeatureBrief == "" {
		d.FeatureBrief = idea
	}
	d.logf("[intake] normalized idea: %s", truncate(idea, 80))
}

func fixer(d *Draft) {
	d.logf("[fixer] received feature_brief, length=%d", len([]rune(d.FeatureBrief)))
}

func outline(d *Draft) {
	d.Skeleton = Skeleton{
		Title:  "FORGE draft for: " + cut(d.Idea, 60),
		Stages: append([]string(nil), skeletonStages...),
	}
	d.logf("[gauntlet] attached draft skeleton structure.")
}

func linearize(d *Draft) {
	d.LinearBrief = fmt.Sprintf("PROJECT: %s\n\nSUMMARY:\n%s", d.Idea, d.FeatureBrief)
	d.logf("[linearizer] produced linear brief.")
}

func prepare(d *Draft) {
	d.Status = "draft"
	d.logf("[vault_prep] marked state as draft.")
}

// cut returns at most n runes of s.
func cut(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// truncate is cut with an ellipsis when s was shortened.
func truncate(s string, n int) string {
	if out := cut(s, n); out != s {
		return out + "..."
	}
	return s
}
