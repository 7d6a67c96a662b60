// Package router selects a tool or skill for a user prompt without an
// extra LLM call. Matching is literal, case-insensitive phrase matching
// against each target's hints; the outcome is deterministic for a given
// prompt and target list.
package router

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Target types. Fallback means no target was selected and the reasoner
// should handle the turn unaided.
const (
	TypeTool     = "tool"
	TypeSkill    = "skill"
	TypeFallback = "fallback"
)

// DefaultThreshold is the minimum confidence required to select a
// target. Below it the router returns a fallback decision.
const DefaultThreshold = 0.5

// Target is the uniform projection of a routable entity (tool or
// skill). Targets are rebuilt from the live registries for every
// routing call; the router only reads them.
type Target struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Description string   `json:"description"`
	Hints       []string `json:"hints"`
}

// Decision is the immutable outcome of one routing call. Target is
// empty when TargetType is TypeFallback. Args is always empty as
// produced by the router — argument extraction belongs to the caller
// via the selected action; use WithArgs to derive a populated copy.
type Decision struct {
	Target     string            `json:"target"`
	TargetType string            `json:"target_type"`
	Confidence float64           `json:"confidence"`
	Args       map[string]string `json:"args"`
	Reasoning  string            `json:"reasoning"`
	ID         string            `json:"id"`
	Timestamp  time.Time         `json:"timestamp"`
}

// WithArgs returns a copy of d carrying the given args. The receiver
// is not modified; decisions are never mutated after construction.
func (d Decision) WithArgs(args map[string]string) Decision {
	copied := make(map[string]string, len(args))
	for k, v := range args {
		copied[k] = v
	}
	d.Args = copied
	return d
}

// Fallback reports whether no target was selected.
func (d Decision) Fallback() bool {
	return d.TargetType == TypeFallback
}

func newDecision(target, targetType string, confidence float64, reasoning string) Decision {
	return Decision{
		Target:     target,
		TargetType: targetType,
		Confidence: confidence,
		Args:       map[string]string{},
		Reasoning:  reasoning,
		ID:         newID(),
		Timestamp:  time.Now(),
	}
}

func fallback(confidence float64, reasoning string) Decision {
	return newDecision("", TypeFallback, confidence, reasoning)
}

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

// RuleRouter scores prompts against target hints. Confidence for a
// target is the length of its longest matching hint divided by the
// length of the longest hint anywhere in the catalog, so scores are
// comparable across targets with very different hint profiles.
//
// The router holds only its threshold; Route is a pure function of
// (prompt, targets, threshold) and is safe to call concurrently.
type RuleRouter struct {
	threshold float64
	logger    *slog.Logger
}

// New creates a RuleRouter with the given confidence threshold in
// [0, 1]. A decision exactly at the threshold is accepted.
func New(logger *slog.Logger, threshold float64) *RuleRouter {
	if logger == nil {
		logger = slog.Default()
	}
	return &RuleRouter{threshold: threshold, logger: logger}
}

// Threshold returns the configured confidence threshold.
func (r *RuleRouter) Threshold() float64 {
	return r.threshold
}

// candidate is one target with at least one matching hint.
type candidate struct {
	confidence float64
	name       string
	matchLen   int
}

// Route selects at most one target for the prompt. It never returns an
// error: empty prompts, empty catalogs, and no-match prompts all map
// to a well-defined fallback decision. Route does not mutate targets.
//
// Matching is substring-based, not tokenized: a hint that happens to be
// a substring of a longer unrelated word still counts. The scoring math
// relies on raw substring length, so do not swap in word-boundary
// matching.
func (r *RuleRouter) Route(prompt string, targets []Target) Decision {
	if len(targets) == 0 {
		return fallback(0.0, "No targets available.")
	}

	normalized := strings.ToLower(strings.TrimSpace(prompt))
	if normalized == "" {
		return fallback(0.0, "Empty prompt.")
	}

	// Longest hint across the whole catalog; floor of 1 keeps the
	// division defined and confidence within [0, 1].
	maxHintLen := 1
	for _, t := range targets {
		for _, h := range t.Hints {
			if len(h) > maxHintLen {
				maxHintLen = len(h)
			}
		}
	}

	// A target with no matching hint is excluded outright, not scored 0.
	// Only the longest matching hint counts per target.
	var candidates []candidate
	for _, t := range targets {
		bestLen := 0
		for _, h := range t.Hints {
			if len(h) > bestLen && strings.Contains(normalized, strings.ToLower(h)) {
				bestLen = len(h)
			}
		}
		if bestLen > 0 {
			confidence := float64(bestLen) / float64(maxHintLen)
			if confidence > 1.0 {
				confidence = 1.0
			}
			candidates = append(candidates, candidate{
				confidence: confidence,
				name:       t.Name,
				matchLen:   bestLen,
			})
		}
	}

	if len(candidates) == 0 {
		return fallback(0.0, "No hint matched the prompt.")
	}

	// Explicit sort rather than taking the first hit during iteration:
	// highest confidence first, ties broken by name ascending, so the
	// outcome never depends on map or slice ordering upstream.
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].confidence != candidates[j].confidence {
			return candidates[i].confidence > candidates[j].confidence
		}
		return candidates[i].name < candidates[j].name
	})

	top := candidates[0]
	if top.confidence < r.threshold {
		return fallback(top.confidence, fmt.Sprintf(
			"Best match %q below threshold (%.2f < %.2f).",
			top.name, top.confidence, r.threshold))
	}

	chosen := findTarget(targets, top.name)
	matched := matchedHint(chosen, normalized, top.matchLen)

	decision := newDecision(top.name, chosen.Type, top.confidence, fmt.Sprintf(
		"Matched hint %q for %s %q.", matched, chosen.Type, top.name))

	r.logger.Debug("prompt routed",
		"target", decision.Target,
		"target_type", decision.TargetType,
		"confidence", decision.Confidence,
		"hint", matched,
	)

	return decision
}

// findTarget returns the target with the given name. The name comes
// from a candidate, so it is always present.
func findTarget(targets []Target, name string) Target {
	for _, t := range targets {
		if t.Name == name {
			return t
		}
	}
	return Target{}
}

// matchedHint returns the hint of length matchLen that matched the
// normalized prompt, for the reasoning string.
func matchedHint(t Target, normalized string, matchLen int) string {
	for _, h := range t.Hints {
		if len(h) == matchLen && strings.Contains(normalized, strings.ToLower(h)) {
			return h
		}
	}
	return ""
}
