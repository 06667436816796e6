package store

// Transcription is a stored record of recognized text plus metadata.
type Transcription struct {
	ID        int64    `json:"id"`
	Text      string   `json:"text"`
	Timestamp int64    `json:"timestamp"`
	Duration  *float64 `json:"duration"`
	Language  string   `json:"language"`
	Model     string   `json:"model"`
}

// NewTranscription carries the fields a caller supplies on creation. A zero
// Timestamp is replaced with the current time.
type NewTranscription struct {
	Text      string   `json:"text"`
	Timestamp int64    `json:"timestamp,omitempty"`
	Duration  *float64 `json:"duration"`
	Language  string   `json:"language"`
	Model     string   `json:"model"`
}

// Seconds is a convenience for building a nullable duration.
func Seconds(v float64) *float64 {
	return &v
}
