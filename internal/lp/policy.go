package lp

import (
	"fmt"
	"path"
	"sort"
	"strings"
)

// Mode controls how far a candidate group is escalated to integer.
type Mode int

const (
	// Continuous leaves every candidate in [0, 1].
	Continuous Mode = iota
	// EscalateFirst restricts the first candidate of the group to {0, 1}.
	EscalateFirst
	// EscalateAll restricts every candidate of the group to {0, 1}.
	EscalateAll
)

var modeNames = map[Mode]string{
	Continuous:    "continuous",
	EscalateFirst: "first",
	EscalateAll:   "all",
}

func (m Mode) String() string {
	if s, ok := modeNames[m]; ok {
		return s
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode accepts the names printed by String.
func ParseMode(s string) (Mode, error) {
	for m, name := range modeNames {
		if strings.EqualFold(s, name) {
			return m, nil
		}
	}
	return Continuous, fmt.Errorf("lp: unknown escalation mode %q", s)
}

func (m Mode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *Mode) UnmarshalText(b []byte) error {
	parsed, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Policy chooses an escalation Mode per candidate group. Group keys may be
// exact names or path.Match patterns such as "*/direction". An exact name wins
// over a pattern and patterns are tried in lexical order.
type Policy struct {
	Default Mode
	Groups  map[string]Mode
}

func (p Policy) ModeFor(group string) Mode {
	if m, ok := p.match(group); ok {
		return m
	}
	return p.Default
}

// Names reports whether Groups has an exact name or pattern for group.
func (p Policy) Names(group string) bool {
	_, ok := p.match(group)
	return ok
}

func (p Policy) match(group string) (Mode, bool) {
	if m, ok := p.Groups[group]; ok {
		return m, true
	}
	patterns := make([]string, 0, len(p.Groups))
	for pattern := range p.Groups {
		patterns = append(patterns, pattern)
	}
	sort.Strings(patterns)
	for _, pattern := range patterns {
		if ok, _ := path.Match(pattern, group); ok {
			return p.Groups[pattern], true
		}
	}
	return Continuous, false
}

// modeIn is ModeFor with prob's group defaults applied.
func (p Policy) modeIn(prob *Problem, group string) Mode {
	if m, ok := p.match(group); ok {
		return m
	}
	if m, ok := prob.groupMode[group]; ok && p.Default == Continuous {
		return m
	}
	return p.Default
}

// integers lists the variables the policy restricts to integer values.
func (p Policy) integers(prob *Problem) []Var {
	var out []Var
	for _, g := range prob.groupOrder {
		cands := prob.groups[g]
		switch p.modeIn(prob, g) {
		case EscalateFirst:
			out = append(out, cands[0])
		case EscalateAll:
			out = append(out, cands...)
		}
	}
	return out
}
