package wsrelay

// frameType discriminates relay protocol frames. The relay never inspects
// data payloads; it only routes frames between registered identities.
type frameType string

const (
	frameDataOpen   frameType = "data_open"
	frameData       frameType = "data"
	frameDataClose  frameType = "data_close"
	frameCall       frameType = "call"
	frameCallAnswer frameType = "call_answer"
	frameCallClose  frameType = "call_close"
	framePeerGone   frameType = "peer_gone"
)

// frame is one relay protocol message. From is stamped by the server; a
// client cannot spoof its origin.
type frame struct {
	Type     frameType `json:"type"`
	From     string    `json:"from,omitempty"`
	To       string    `json:"to,omitempty"`
	Payload  []byte    `json:"payload,omitempty"`
	StreamID string    `json:"stream_id,omitempty"`
}
