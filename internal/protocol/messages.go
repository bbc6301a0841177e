package protocol

import "time"

// Dynamics carries prosodic features extracted upstream from the source audio.
type Dynamics struct {
	Emotion   string  `json:"emotion"`
	Intensity float64 `json:"intensity"`
	RateWPM   int     `json:"rate_wpm"`
	Volume    string  `json:"volume"`
}

// TranscriptSegment is one finalized unit of transcribed speech, the
// pipeline's unit of work. Produced by an external transcription component
// and consumed exactly once.
type TranscriptSegment struct {
	SessionID      string    `json:"session_id"`
	SourceLanguage string    `json:"source_language"`
	Text           string    `json:"text"`
	Dynamics       Dynamics  `json:"dynamics"`
	Sequence       int64     `json:"sequence"`
	Timestamp      time.Time `json:"timestamp"`
}

// Subscriber control message kinds.
const (
	ControlJoin      = "join"
	ControlLeave     = "leave"
	ControlHeartbeat = "heartbeat"
)

// SubscriberControl announces a subscriber joining, leaving, or refreshing
// its liveness for a session. Kind selects which fields are meaningful.
type SubscriberControl struct {
	Kind         string    `json:"kind"`
	SessionID    string    `json:"session_id"`
	SubscriberID string    `json:"subscriber_id"`
	Language     string    `json:"language,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// AudioChunk is one synthesized audio payload pushed to a single subscriber.
type AudioChunk struct {
	SessionID    string  `json:"session_id"`
	SubscriberID string  `json:"subscriber_id"`
	Language     string  `json:"language"`
	Sequence     int64   `json:"sequence"`
	SampleRate   int     `json:"sample_rate"`
	PCM          []byte  `json:"pcm"`
	DurationSecs float64 `json:"duration_secs"`
}

// AudioAck reports that a subscriber finished playing audio, releasing
// buffered duration on the server side.
type AudioAck struct {
	SessionID    string  `json:"session_id"`
	SubscriberID string  `json:"subscriber_id"`
	DurationSecs float64 `json:"duration_secs"`
}

const (
	SubjectSegmentFinal            = "transcript.segment.final"
	SubjectSubscriberControlPrefix = "subscriber.control"
	SubjectAudioOutPrefix          = "audio.out"
	SubjectAudioAckPrefix          = "audio.ack"
)
