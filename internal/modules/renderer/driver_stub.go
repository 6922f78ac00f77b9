//go:build !gstreamer

package renderer

import (
	"errors"
	"time"
)

// StubDriver stands in when the gstreamer build tag is not enabled.
type StubDriver struct{}

// NewDriver returns an error when the gstreamer build tag is missing.
func NewDriver(pipeline string, device string, crossfade time.Duration) (Driver, error) {
	return nil, errors.New("gstreamer build tag not enabled")
}

func (d *StubDriver) Play(url string) error { return errors.New("gstreamer build tag not enabled") }
func (d *StubDriver) Pause() error          { return errors.New("gstreamer build tag not enabled") }
func (d *StubDriver) Resume() error         { return errors.New("gstreamer build tag not enabled") }
func (d *StubDriver) Stop() error           { return errors.New("gstreamer build tag not enabled") }
func (d *StubDriver) Seek(positionMS int64) error {
	return errors.New("gstreamer build tag not enabled")
}
func (d *StubDriver) SetVolume(volume float64) error {
	return errors.New("gstreamer build tag not enabled")
}
func (d *StubDriver) Position() (int64, int64, bool) { return 0, 0, false }
