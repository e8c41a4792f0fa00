package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/tiger/caption-call/api/peer"
)

// DeviceSource is an in-process camera+microphone source. Acquisition
// returns a fresh stream with both tracks enabled, or a configured failure.
type DeviceSource struct {
	// FailWith simulates permission denial or missing devices.
	FailWith error

	mu       sync.Mutex
	acquired int
}

// NewDeviceSource returns a device source that always grants access.
func NewDeviceSource() *DeviceSource {
	return &DeviceSource{}
}

// AcquireStream returns a new two-track stream or the configured failure.
func (d *DeviceSource) AcquireStream(_ context.Context) (peer.MediaStream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.FailWith != nil {
		return nil, d.FailWith
	}
	d.acquired++
	return NewStream(fmt.Sprintf("mem-stream-%d", d.acquired)), nil
}

// Acquisitions returns how many streams were handed out.
func (d *DeviceSource) Acquisitions() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.acquired
}

// Stream is an in-process media stream with one audio and one video track.
type Stream struct {
	id    string
	audio *TrackState
	video *TrackState
}

// NewStream returns a stream with both tracks enabled.
func NewStream(id string) *Stream {
	return &Stream{
		id:    id,
		audio: newTrack(peer.TrackAudio),
		video: newTrack(peer.TrackVideo),
	}
}

// ID returns the stream identifier.
func (s *Stream) ID() string { return s.id }

// AudioTrack returns the audio track.
func (s *Stream) AudioTrack() peer.Track { return s.audio }

// VideoTrack returns the video track.
func (s *Stream) VideoTrack() peer.Track { return s.video }

// Stop stops both tracks.
func (s *Stream) Stop() {
	s.audio.Stop()
	s.video.Stop()
}

// Stopped reports whether both tracks were stopped.
func (s *Stream) Stopped() bool {
	return s.audio.Stopped() && s.video.Stopped()
}

// TrackState is an in-process enableable track.
type TrackState struct {
	kind peer.TrackKind

	mu      sync.Mutex
	enabled bool
	stopped bool
}

func newTrack(kind peer.TrackKind) *TrackState {
	return &TrackState{kind: kind, enabled: true}
}

// Kind returns the track kind.
func (t *TrackState) Kind() peer.TrackKind { return t.kind }

// Enabled returns the current enabled flag.
func (t *TrackState) Enabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabled
}

// SetEnabled mutates only this track's enabled flag.
func (t *TrackState) SetEnabled(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enabled = enabled
}

// Stop permanently stops the track.
func (t *TrackState) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
}

// Stopped reports whether the track was stopped.
func (t *TrackState) Stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}
