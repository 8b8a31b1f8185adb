package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// FLACSampleRate is the fixed output rate for converted MP3 input. The
// recognition request must advertise the same value.
const FLACSampleRate = 48000

// flacChannels is the fixed output channel count; the recognition service
// expects mono unless told otherwise.
const flacChannels = 1

// ErrFFmpegNotFound reports that the external encoder is not installed.
var ErrFFmpegNotFound = errors.New("ffmpeg not found in PATH; install ffmpeg to transcribe MP3 input")

// ConvertToFLAC transcodes an MP3 file to mono 48 kHz FLAC under the system
// temp directory. It returns the FLAC path and a cleanup function removing
// it; the caller must run cleanup on every exit path.
func ConvertToFLAC(ctx context.Context, mp3Path string, log zerolog.Logger) (string, func(), error) {
	noop := func() {}

	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return "", noop, ErrFFmpegNotFound
	}

	evt := log.Info().Str("input", filepath.Base(mp3Path)).Int("sample_rate", FLACSampleRate)
	if dur, err := Probe(ctx, mp3Path); err == nil {
		evt = evt.Dur("duration", dur)
	}
	evt.Msg("converting to FLAC")

	outPath := filepath.Join(os.TempDir(), fmt.Sprintf("%s_%s.flac", BaseName(mp3Path), uuid.New().String()))

	start := time.Now()
	cmd := exec.CommandContext(ctx, "ffmpeg", convertArgs(mp3Path, outPath)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		os.Remove(outPath)
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", noop, fmt.Errorf("ffmpeg conversion: %s: %w", msg, err)
		}
		return "", noop, fmt.Errorf("ffmpeg conversion: %w", err)
	}
	log.Info().
		Str("output", filepath.Base(outPath)).
		Dur("elapsed", time.Since(start)).
		Msg("conversion complete")

	cleanup := func() {
		if err := os.Remove(outPath); err != nil {
			if !os.IsNotExist(err) {
				log.Warn().Err(err).Str("path", outPath).Msg("could not remove temporary FLAC file")
			}
			return
		}
		log.Debug().Str("path", outPath).Msg("temporary FLAC file removed")
	}
	return outPath, cleanup, nil
}

// convertArgs builds the ffmpeg argument list for an MP3 to FLAC transcode.
func convertArgs(inPath, outPath string) []string {
	return []string{
		"-i", inPath,
		"-ar", strconv.Itoa(FLACSampleRate),
		"-ac", strconv.Itoa(flacChannels),
		"-y",
		outPath,
		"-hide_banner",
		"-loglevel", "error",
	}
}

// Probe returns the audio duration via ffprobe. Failure is not fatal to the
// pipeline; duration only informs logging.
func Probe(ctx context.Context, path string) (time.Duration, error) {
	out, err := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	).Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe: %w", err)
	}
	return parseProbeDuration(string(out))
}

// parseProbeDuration converts ffprobe's seconds-as-decimal output.
func parseProbeDuration(out string) (time.Duration, error) {
	s := strings.TrimSpace(out)
	d, err := time.ParseDuration(s + "s")
	if err != nil {
		return 0, fmt.Errorf("parse ffprobe duration %q: %w", s, err)
	}
	return d, nil
}
