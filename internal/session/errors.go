package session

import (
	"errors"
	"fmt"

	"github.com/tiger/caption-call/api/peer"
)

// MediaAccessError reports camera/microphone acquisition failure: permission
// denied or no device present. User-actionable; never retried automatically.
type MediaAccessError struct {
	Err error
}

func (e *MediaAccessError) Error() string {
	return fmt.Sprintf("media access failed: %v", e.Err)
}

func (e *MediaAccessError) Unwrap() error { return e.Err }

// EndpointError reports that the local endpoint could not be opened under an
// identity. The caller decides retry or fallback-to-join.
type EndpointError struct {
	Identity string
	Err      error
}

func (e *EndpointError) Error() string {
	return fmt.Sprintf("endpoint open failed for %s: %v", e.Identity, e.Err)
}

func (e *EndpointError) Unwrap() error { return e.Err }

// IdentityTaken reports whether the open failure was an identity collision,
// the host/join race signal.
func (e *EndpointError) IdentityTaken() bool {
	return errors.Is(e.Err, peer.ErrIdentityTaken)
}

// ConnectionError reports a failed outbound pairing attempt: the data channel
// or the media call to the remote identity could not be established.
type ConnectionError struct {
	Remote string
	Err    error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection to %s failed: %v", e.Remote, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }
