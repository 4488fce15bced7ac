package types

// Event is the canonical payload recorded for every state transition. The
// attribute map keeps values as strings so downstream consumers never need the
// module's internal types to decode an event stream.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}
