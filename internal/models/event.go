package models

// StreamEvent is the transient wire record carried in one SSE data frame.
// Intermediate events set exactly one of Chunk or Error; the terminal
// success event sets Done together with the concatenated FullResponse.
// An Error event is terminal and is never followed by Done.
type StreamEvent struct {
	Chunk        string `json:"chunk,omitempty"`
	Error        string `json:"error,omitempty"`
	Done         bool   `json:"done,omitempty"`
	FullResponse string `json:"full_response,omitempty"`
}
