//go:build gstreamer

package renderer

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-gst/go-gst/gst"
)

// GstDriver plays media through a GStreamer pipeline template.
type GstDriver struct {
	mu        sync.Mutex
	pipeline  string
	device    string
	crossfade time.Duration
	volume    float64
	current   *gst.Element
}

var gstInitOnce sync.Once

// NewDriver creates a GStreamer driver from a pipeline template. The
// template may reference {url}, {device} and {volume}.
func NewDriver(pipeline string, device string, crossfade time.Duration) (Driver, error) {
	if strings.TrimSpace(pipeline) == "" {
		return nil, errors.New("pipeline template required")
	}
	gstInitOnce.Do(func() {
		gst.Init(nil)
	})

	return &GstDriver{pipeline: pipeline, device: device, crossfade: crossfade, volume: 1.0}, nil
}

// Play starts a fresh pipeline for the URL, replacing any current one.
func (d *GstDriver) Play(url string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	pipeline, err := d.buildPipeline(url, d.volume)
	if err != nil {
		return err
	}
	if err := pipeline.SetState(gst.StatePlaying); err != nil {
		return err
	}

	if d.current != nil && d.crossfade > 0 {
		old := d.current
		go d.fadeOut(old, d.crossfade)
	} else if d.current != nil {
		_ = d.current.SetState(gst.StateNull)
	}

	d.current = pipeline
	return nil
}

// Pause pauses the current pipeline.
func (d *GstDriver) Pause() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.current == nil {
		return errors.New("not playing")
	}
	return d.current.SetState(gst.StatePaused)
}

// Resume resumes the current pipeline.
func (d *GstDriver) Resume() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.current == nil {
		return errors.New("not playing")
	}
	return d.current.SetState(gst.StatePlaying)
}

// Stop tears down the current pipeline.
func (d *GstDriver) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.current == nil {
		return nil
	}
	_ = d.current.SetState(gst.StateNull)
	d.current = nil
	return nil
}

// Seek seeks within the current pipeline.
func (d *GstDriver) Seek(positionMS int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.current == nil {
		return errors.New("not playing")
	}
	positionNS := positionMS * int64(time.Millisecond)
	return d.current.SeekSimple(gst.FormatTime, gst.SeekFlagFlush|gst.SeekFlagKeyUnit, positionNS)
}

// SetVolume sets volume (0..1).
func (d *GstDriver) SetVolume(volume float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.volume = volume
	if d.current != nil {
		_ = d.current.SetProperty("volume", volume)
	}
	return nil
}

// Position reports the current pipeline position and duration.
func (d *GstDriver) Position() (int64, int64, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.current == nil {
		return 0, 0, false
	}
	ok, positionNS := d.current.QueryPosition(gst.FormatTime)
	if !ok {
		return 0, 0, false
	}
	_, durationNS := d.current.QueryDuration(gst.FormatTime)
	return positionNS / int64(time.Millisecond), durationNS / int64(time.Millisecond), true
}

func (d *GstDriver) buildPipeline(url string, volume float64) (*gst.Element, error) {
	pipeline := d.pipeline
	pipeline = strings.ReplaceAll(pipeline, "{url}", url)
	pipeline = strings.ReplaceAll(pipeline, "{device}", d.device)
	pipeline = strings.ReplaceAll(pipeline, "{volume}", fmt.Sprintf("%0.2f", volume))

	return gst.ParseLaunch(pipeline)
}

func (d *GstDriver) fadeOut(pipeline *gst.Element, duration time.Duration) {
	steps := 10
	step := duration / time.Duration(steps)
	for i := steps; i >= 0; i-- {
		volume := (float64(i) / float64(steps)) * d.volume
		_ = pipeline.SetProperty("volume", volume)
		time.Sleep(step)
	}
	_ = pipeline.SetState(gst.StateNull)
}
