package clock

import "time"

// Clock is the wall-clock source used when stamping command envelopes.
type Clock struct{}

// NowUnix returns the current unix time in seconds.
func (Clock) NowUnix() int64 {
	return time.Now().Unix()
}
