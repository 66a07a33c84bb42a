package timegrid

import "fmt"

// Window is a half-open daily interval [Start, End).
type Window struct {
	Start TimeOfDay `json:"start"`
	End   TimeOfDay `json:"end"`
}

func (w Window) Validate() error {
	if w.End <= w.Start {
		return fmt.Errorf("window %s-%s: end must be after start", w.Start, w.End)
	}
	return nil
}

func (w Window) Overlaps(other Window) bool {
	return w.Start < other.End && other.Start < w.End
}

// Contains reports whether the interval [start, end) lies inside the window.
func (w Window) Contains(start, end TimeOfDay) bool {
	return start >= w.Start && end <= w.End
}

func (w Window) DurationMinutes() int {
	return int(w.End - w.Start)
}
