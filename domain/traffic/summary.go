package traffic

import "fmt"

// SlotState is the resolution state of one summary field.
type SlotState int

const (
	SlotPending SlotState = iota
	SlotResolved
	SlotFailed
)

func (s SlotState) String() string {
	switch s {
	case SlotResolved:
		return "resolved"
	case SlotFailed:
		return "failed"
	default:
		return "pending"
	}
}

// Summary accumulates the four window totals of one cycle.
// Each field is written at most once; unresolved fields read as zero.
type Summary struct {
	TodayBytes      int64
	ThisMonthBytes  int64
	Last31DaysBytes int64
	Last7DaysBytes  int64

	states [labelCount]SlotState
	errs   [labelCount]error
}

func (s *Summary) field(l Label) *int64 {
	switch l {
	case Today:
		return &s.TodayBytes
	case ThisMonth:
		return &s.ThisMonthBytes
	case Last31Days:
		return &s.Last31DaysBytes
	case Last7Days:
		return &s.Last7DaysBytes
	}
	return nil
}

// Set resolves the slot for l. Returns false if the slot was already written.
func (s *Summary) Set(l Label, bytes int64) bool {
	if !l.valid() || s.states[l] != SlotPending {
		return false
	}
	if bytes < 0 {
		bytes = 0
	}
	*s.field(l) = bytes
	s.states[l] = SlotResolved
	return true
}

// Fail marks the slot for l as failed. Returns false if the slot was already written.
func (s *Summary) Fail(l Label, err error) bool {
	if !l.valid() || s.states[l] != SlotPending {
		return false
	}
	if err == nil {
		err = fmt.Errorf("%s: unknown failure", l)
	}
	s.states[l] = SlotFailed
	s.errs[l] = err
	return true
}

// Bytes returns the byte count for l (zero unless resolved).
func (s Summary) Bytes(l Label) int64 {
	if !l.valid() {
		return 0
	}
	return *s.field(l)
}

// State returns the slot state for l.
func (s Summary) State(l Label) SlotState {
	if !l.valid() {
		return SlotPending
	}
	return s.states[l]
}

// Err returns the error recorded for l, if any.
func (s Summary) Err(l Label) error {
	if !l.valid() {
		return nil
	}
	return s.errs[l]
}

// Failed returns the labels whose query failed, in display order.
func (s Summary) Failed() []Label {
	var out []Label
	for _, l := range Labels() {
		if s.states[l] == SlotFailed {
			out = append(out, l)
		}
	}
	return out
}

// Complete reports whether every slot is resolved or failed.
func (s Summary) Complete() bool {
	for _, l := range Labels() {
		if s.states[l] == SlotPending {
			return false
		}
	}
	return true
}
