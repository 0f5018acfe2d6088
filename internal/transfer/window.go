package transfer

import "time"

// Window is the range of seconds within a minute in which the staging file
// may be removed. Both bounds are inclusive.
type Window struct {
	Open  int
	Close int
}

// DefaultWindow opens at second 10 and closes after second 45.
var DefaultWindow = Window{Open: 10, Close: 45}

// Wait returns how long to wait from now until the window is open. It
// returns 0 when now is inside the window.
func (w Window) Wait(now time.Time) time.Duration {
	minute := now.Truncate(time.Minute)
	open := minute.Add(time.Duration(w.Open) * time.Second)
	closed := minute.Add(time.Duration(w.Close+1) * time.Second)

	switch {
	case now.Before(open):
		return open.Sub(now)
	case now.Before(closed):
		return 0
	default:
		return open.Add(time.Minute).Sub(now)
	}
}

// Contains reports whether now falls inside the window.
func (w Window) Contains(now time.Time) bool {
	return w.Wait(now) == 0
}
