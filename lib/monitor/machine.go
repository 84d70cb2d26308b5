// Package monitor infers generation start and completion on an AI page from
// periodically sampled DOM signals.
package monitor

import "time"

type State int

const (
	Idle State = iota
	Generating
)

func (s State) String() string {
	if s == Generating {
		return "generating"
	}
	return "idle"
}

type TransitionKind string

const (
	Started        TransitionKind = "generation-started"
	Completed      TransitionKind = "generation-completed"
	ImageCompleted TransitionKind = "image-completed"
)

type Transition struct {
	Kind      TransitionKind
	NewImages int
}

// Sample is one observation of a page.
type Sample struct {
	Generating bool
	ImageCount int
	At         time.Time
}

// Machine is the per-tab Idle/Generating state machine. It is not safe for
// concurrent use; the tab agent owns it.
type Machine struct {
	state      State
	baseline   int
	seeded     bool
	lastSample time.Time
}

func (m *Machine) State() State { return m.state }

// Step applies a sample and returns the transitions it caused, in order.
// Images already on the page when sampling begins never count as new.
func (m *Machine) Step(s Sample) []Transition {
	var out []Transition
	if !m.seeded {
		m.baseline = s.ImageCount
		m.seeded = true
	}

	switch {
	case s.Generating && m.state == Idle:
		out = append(out, Transition{Kind: Started})
		m.baseline = s.ImageCount
	case !s.Generating && m.state == Generating:
		out = append(out, Transition{Kind: Completed})
	}

	if !s.Generating && s.ImageCount > m.baseline {
		out = append(out, Transition{Kind: ImageCompleted, NewImages: s.ImageCount - m.baseline})
		m.baseline = s.ImageCount
	}

	if s.Generating {
		m.state = Generating
	} else {
		m.state = Idle
	}
	m.lastSample = s.At
	return out
}

// Reset returns the machine to its initial state, as after a page reload.
func (m *Machine) Reset() {
	*m = Machine{}
}
