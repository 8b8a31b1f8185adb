package output

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/wilsoncelyCUC/google-speech-transcription-diarization/internal/transcribe"
)

// Stats is the optional summary appended to a transcript.
type Stats struct {
	Words       int
	Turns       int
	AudioSource string
}

// Render formats utterance blocks as transcript text. Speaker numbering is
// 1-based on the tag value itself, not on order of appearance, so
// non-adjacent runs with the same tag share a label.
func Render(blocks []transcribe.UtteranceBlock) string {
	var sb strings.Builder
	for _, b := range blocks {
		fmt.Fprintf(&sb, "Speaker %d: %s\n\n", b.SpeakerTag+1, b.Text)
	}
	return sb.String()
}

// RenderStats formats the summary trailer.
func RenderStats(s Stats) string {
	var sb strings.Builder
	sb.WriteString("---\n")
	fmt.Fprintf(&sb, "Words: %d\n", s.Words)
	fmt.Fprintf(&sb, "Speaker turns: %d\n", s.Turns)
	fmt.Fprintf(&sb, "Audio source: %s\n", s.AudioSource)
	return sb.String()
}

// Write renders blocks, plus the stats trailer when given, and writes the
// transcript to path, creating parent directories as needed.
func Write(path string, blocks []transcribe.UtteranceBlock, stats *Stats) error {
	text := Render(blocks)
	if stats != nil {
		text += RenderStats(*stats)
	}
	return writeFileAtomic(path, []byte(text))
}

// writeFileAtomic writes via temp file + rename so a failed run never leaves
// a partial transcript behind.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".transcript-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}

// DefaultPath names a transcript after its input:
// {dir}/{base}_{YYYYMMDD_HHMMSS}_diarized.txt.
func DefaultPath(dir, inputBase string, now time.Time) string {
	return filepath.Join(dir, fmt.Sprintf("%s_%s_diarized.txt", inputBase, now.Format("20060102_150405")))
}
