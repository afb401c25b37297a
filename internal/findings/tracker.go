// Package findings keeps the tagged key findings a model reports across
// conversation rounds.
package findings

import (
	"strings"
	"sync"
)

// Tag classifies a finding.
type Tag string

const (
	BusinessRule         Tag = "BUSINESS_RULE"
	ImplementationDetail Tag = "IMPLEMENTATION_DETAIL"
	DataFlow             Tag = "DATA_FLOW"
	Architecture         Tag = "ARCHITECTURE"
	SpecialCase          Tag = "SPECIAL_CASE"
)

// Tags lists the recognized tags.
var Tags = []Tag{BusinessRule, ImplementationDetail, DataFlow, Architecture, SpecialCase}

// ParseTag maps s to a known tag, ignoring case and surrounding space.
func ParseTag(s string) (Tag, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for _, t := range Tags {
		if string(t) == s {
			return t, true
		}
	}
	return "", false
}

type Finding struct {
	Tag  Tag
	Text string
}

// String renders the finding the way it is fed back to the model.
func (f Finding) String() string { return "[" + string(f.Tag) + "] " + f.Text }

// DefaultMax is the number of findings kept when no cap is given.
const DefaultMax = 15

// Tracker is an insertion-ordered set of findings capped to the most recent
// Max entries.
type Tracker struct {
	mu    sync.Mutex
	max   int
	items []Finding
	seen  map[string]struct{}
}

func NewTracker(max int) *Tracker {
	if max <= 0 {
		max = DefaultMax
	}
	return &Tracker{max: max, seen: make(map[string]struct{})}
}

// Merge appends findings not seen before. When the cap is exceeded the
// oldest entries are evicted; an evicted finding may be added again later.
func (t *Tracker) Merge(fs ...Finding) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, f := range fs {
		f.Text = strings.TrimSpace(f.Text)
		if f.Text == "" {
			continue
		}
		key := f.String()
		if _, dup := t.seen[key]; dup {
			continue
		}
		t.seen[key] = struct{}{}
		t.items = append(t.items, f)
	}
	if over := len(t.items) - t.max; over > 0 {
		for _, old := range t.items[:over] {
			delete(t.seen, old.String())
		}
		t.items = append([]Finding(nil), t.items[over:]...)
	}
}

func (t *Tracker) All() []Finding {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Finding(nil), t.items...)
}

func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.items)
}

// String renders one "- [TAG] text" line per finding.
func (t *Tracker) String() string {
	var b strings.Builder
	for _, f := range t.All() {
		b.WriteString("- " + f.String() + "\n")
	}
	return b.String()
}
