package transcribe

import "time"

// WordEntry is a single recognized word with timing and speaker attribution,
// flattened from the recognizer's word-level results in response order.
type WordEntry struct {
	Text       string
	SpeakerTag int
	Start      time.Duration
	End        time.Duration
}

// UtteranceBlock is a maximal run of consecutive WordEntries sharing one
// speaker tag, with the word texts joined by single spaces.
type UtteranceBlock struct {
	SpeakerTag int
	Text       string
}
