package tree

import (
	"slices"
	"time"

	"github.com/YossiLevi4497/OpenCEP/internal/event"
	"github.com/YossiLevi4497/OpenCEP/internal/pattern"
)

// freezeGate implements the freeze consumption policy. While a freezer
// event is active, leaves of the names it blocks ignore new events. A
// freezer stays active until it takes part in a match or leaves the window.
type freezeGate struct {
	window  time.Duration
	blocked map[string][]string
	active  []freezer
}

type freezer struct {
	event *event.Event
	name  string
}

func newFreezeGate(pat *pattern.Pattern) *freezeGate {
	m := pat.FreezeMap()
	if len(m) == 0 {
		return nil
	}
	return &freezeGate{window: pat.Window, blocked: m}
}

func (g *freezeGate) expire(now time.Time) {
	if g == nil || g.window == pattern.Unbounded {
		return
	}
	g.active = slices.DeleteFunc(g.active, func(f freezer) bool {
		return now.Sub(f.event.Timestamp) > g.window
	})
}

func (g *freezeGate) blocks(name string) bool {
	if g == nil {
		return false
	}
	for _, f := range g.active {
		if slices.Contains(g.blocked[f.name], name) {
			return true
		}
	}
	return false
}

func (g *freezeGate) register(e *event.Event, name string) {
	if g == nil {
		return
	}
	if _, ok := g.blocked[name]; ok {
		g.active = append(g.active, freezer{event: e, name: name})
	}
}

func (g *freezeGate) matched(m Match) {
	if g == nil || len(g.active) == 0 {
		return
	}
	g.active = slices.DeleteFunc(g.active, func(f freezer) bool {
		return slices.Contains(m.Events, f.event)
	})
}
