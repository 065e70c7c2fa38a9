package game

import (
	"fmt"

	"github.com/coder/quartz"
)

// CardState is the lifecycle stage of a DigitCard.
type CardState int

const (
	Idle CardState = iota
	Spinning
	Drawn
	Locked
)

func (s CardState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Spinning:
		return "spinning"
	case Drawn:
		return "drawn"
	case Locked:
		return "locked"
	default:
		return "unknown"
	}
}

// MarshalText lets card states travel as strings in JSON.
func (s CardState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *CardState) UnmarshalText(text []byte) error {
	for _, st := range []CardState{Idle, Spinning, Drawn, Locked} {
		if st.String() == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown card state %q", text)
}

// DigitCard owns the digit of one position. Cards are only touched by their
// Session while it holds its lock.
type DigitCard struct {
	position int
	value    int
	hasValue bool
	state    CardState

	timer *quartz.Timer
	spin  uint64 // generation of the current spin; stale ticks compare against it
}

func newDigitCard(position int) *DigitCard {
	return &DigitCard{position: position}
}

func (c *DigitCard) Position() int { return c.position }
func (c *DigitCard) State() CardState { return c.state }

// Value returns the current digit and whether one is set.
func (c *DigitCard) Value() (int, bool) {
	return c.value, c.hasValue
}

func (c *DigitCard) set(v int) {
	c.value = v
	c.hasValue = true
}

func (c *DigitCard) clear() {
	c.value = 0
	c.hasValue = false
}

// cancelSpin stops the pending re-sample. Safe to call repeatedly.
func (c *DigitCard) cancelSpin() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.spin++
}

// View is a copy of a card's observable state.
func (c *DigitCard) View() CardView {
	v := CardView{
		Position: c.position,
		Label:    PositionName(c.position),
		State:    c.state,
	}
	if c.hasValue {
		val := c.value
		v.Value = &val
	}
	return v
}

// CardView is a read-only snapshot of one card.
type CardView struct {
	Position int       `json:"position"`
	Label    string    `json:"label"`
	State    CardState `json:"state"`
	Value    *int      `json:"value,omitempty"`
	Allowed  []int     `json:"allowed,omitempty"`
}
