package wsrelay

import (
	"sync"

	"github.com/tiger/caption-call/api/peer"
)

// remoteTrack is the local handle on a track owned by the other side. Only
// the descriptor crosses the relay; enable state is local bookkeeping.
type remoteTrack struct {
	kind peer.TrackKind

	mu      sync.Mutex
	enabled bool
	stopped bool
}

func (t *remoteTrack) Kind() peer.TrackKind {
	return t.kind
}

func (t *remoteTrack) Enabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabled && !t.stopped
}

func (t *remoteTrack) SetEnabled(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enabled = enabled
}

func (t *remoteTrack) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
}

// RemoteStream is the descriptor-backed stream handle delivered when a call
// is placed or answered across the relay.
type RemoteStream struct {
	id    string
	audio *remoteTrack
	video *remoteTrack
}

func NewRemoteStream(id string) *RemoteStream {
	return &RemoteStream{
		id:    id,
		audio: &remoteTrack{kind: peer.TrackAudio, enabled: true},
		video: &remoteTrack{kind: peer.TrackVideo, enabled: true},
	}
}

func (s *RemoteStream) ID() string             { return s.id }
func (s *RemoteStream) AudioTrack() peer.Track { return s.audio }
func (s *RemoteStream) VideoTrack() peer.Track { return s.video }

func (s *RemoteStream) Stop() {
	s.audio.Stop()
	s.video.Stop()
}
