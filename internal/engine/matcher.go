package engine

import (
	"fmt"
	"strings"

	"github.com/1broseidon/winrestore/internal/layout"
	"github.com/1broseidon/winrestore/internal/platform"
)

// Pair is one planned bounds write.
type Pair struct {
	Handle   platform.Handle
	Position layout.WindowPosition
}

// Matcher pairs a process's cached positions with its live window handles.
// Both slices have the same non-zero length. ok is false when the
// correspondence cannot be trusted, in which case nothing is written.
type Matcher interface {
	Name() string
	Match(cached []layout.WindowPosition, live []platform.Handle) (pairs []Pair, ok bool)
}

// Positional pairs by index. Both lists are most recently used first.
type Positional struct{}

func (Positional) Name() string { return "positional" }

func (Positional) Match(cached []layout.WindowPosition, live []platform.Handle) ([]Pair, bool) {
	if len(cached) != len(live) {
		return nil, false
	}
	pairs := make([]Pair, len(cached))
	for i := range cached {
		pairs[i] = Pair{Handle: live[i], Position: cached[i]}
	}
	return pairs, true
}

// Identifier pairs by window id. It needs handles that carry the window
// system's id, which the X11 backend provides.
type Identifier struct{}

func (Identifier) Name() string { return "identifier" }

func (Identifier) Match(cached []layout.WindowPosition, live []platform.Handle) ([]Pair, bool) {
	byID := make(map[platform.WindowID]platform.Handle, len(live))
	for _, h := range live {
		if h.WindowID == 0 {
			return nil, false
		}
		byID[h.WindowID] = h
	}
	pairs := make([]Pair, 0, len(cached))
	for _, wp := range cached {
		h, ok := byID[wp.ID]
		if !ok {
			return nil, false
		}
		pairs = append(pairs, Pair{Handle: h, Position: wp})
	}
	return pairs, true
}

// MatcherByName resolves a configured matcher. Empty means positional.
func MatcherByName(name string) (Matcher, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "positional":
		return Positional{}, nil
	case "identifier":
		return Identifier{}, nil
	default:
		return nil, fmt.Errorf("unknown matcher %q (valid: positional, identifier)", name)
	}
}
