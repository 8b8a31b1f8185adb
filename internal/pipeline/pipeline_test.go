package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/speech/apiv1p1beta1/speechpb"
	"github.com/rs/zerolog"

	"github.com/wilsoncelyCUC/google-speech-transcription-diarization/internal/audio"
	"github.com/wilsoncelyCUC/google-speech-transcription-diarization/internal/transcribe"
)

const wantTranscript = "Speaker 1: Hello there\n\nSpeaker 2: Hi\n\n"

var sampleWords = []transcribe.WordEntry{
	{Text: "Hello", SpeakerTag: 0, Start: 0, End: 500 * time.Millisecond},
	{Text: "there", SpeakerTag: 0, Start: 500 * time.Millisecond, End: 900 * time.Millisecond},
	{Text: "Hi", SpeakerTag: 1, Start: time.Second, End: 1300 * time.Millisecond},
}

type fakeRecognizer struct {
	words []transcribe.WordEntry
	err   error

	calls int
	got   transcribe.RequestParams
}

func (f *fakeRecognizer) Recognize(_ context.Context, p transcribe.RequestParams) ([]transcribe.WordEntry, error) {
	f.calls++
	f.got = p
	if f.err != nil {
		return nil, f.err
	}
	return f.words, nil
}

type fakeUploader struct {
	uri string
	err error

	calls int
	path  string
}

func (f *fakeUploader) Upload(_ context.Context, path string) (string, error) {
	f.calls++
	f.path = path
	if f.err != nil {
		return "", f.err
	}
	return f.uri, nil
}

func fakeConverter(flacPath string, cleaned *bool, err error) Converter {
	return func(_ context.Context, _ string, _ zerolog.Logger) (string, func(), error) {
		if err != nil {
			return "", func() {}, err
		}
		return flacPath, func() { *cleaned = true }, nil
	}
}

func writeInput(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("audio"), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}
	return path
}

func newPipeline(conv Converter, up Uploader, rec Recognizer) *Pipeline {
	return &Pipeline{Convert: conv, Uploader: up, Recognizer: rec, Log: zerolog.Nop()}
}

func requireAbsent(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("transcript written despite failure: stat err = %v", err)
	}
}

func TestRunLocalFLAC(t *testing.T) {
	input := writeInput(t, "interview.flac")
	outPath := filepath.Join(t.TempDir(), "out.txt")
	up := &fakeUploader{uri: "gs://media/audio_uploads/interview.flac_1700000000"}
	rec := &fakeRecognizer{words: sampleWords}
	p := newPipeline(nil, up, rec)

	res, err := p.Run(context.Background(), Params{
		Input:       input,
		Language:    "en-US",
		MinSpeakers: 1,
		MaxSpeakers: 5,
		SampleRate:  16000,
		Encoding:    speechpb.RecognitionConfig_FLAC,
		OutputPath:  outPath,
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if up.calls != 1 || up.path != input {
		t.Errorf("uploaded path = %q (calls %d), want %q once", up.path, up.calls, input)
	}
	if rec.got.URI != up.uri {
		t.Errorf("recognized URI = %q, want %q", rec.got.URI, up.uri)
	}
	if rec.got.LanguageCode != "en-US" || rec.got.MinSpeakers != 1 || rec.got.MaxSpeakers != 5 {
		t.Errorf("request params = %+v, want language/speaker bounds passed through", rec.got)
	}
	if rec.got.SampleRateHertz != 16000 || rec.got.Encoding != speechpb.RecognitionConfig_FLAC {
		t.Errorf("got sample rate %d encoding %v, want 16000 FLAC", rec.got.SampleRateHertz, rec.got.Encoding)
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("read transcript: %v", err)
	}
	if string(data) != wantTranscript {
		t.Errorf("transcript = %q, want %q", data, wantTranscript)
	}

	if res.OutputPath != outPath || res.AudioURI != up.uri {
		t.Errorf("result = %+v, want output %q uri %q", res, outPath, up.uri)
	}
	if res.Words != 3 || res.Turns != 2 {
		t.Errorf("result counts = %d words %d turns, want 3 and 2", res.Words, res.Turns)
	}
}

func TestRunLocalMP3Converts(t *testing.T) {
	input := writeInput(t, "meeting.mp3")
	outPath := filepath.Join(t.TempDir(), "out.txt")
	flacPath := filepath.Join(t.TempDir(), "meeting_converted.flac")
	cleaned := false
	up := &fakeUploader{uri: "gs://media/audio_uploads/meeting_converted.flac_1700000000"}
	rec := &fakeRecognizer{words: sampleWords}
	p := newPipeline(fakeConverter(flacPath, &cleaned, nil), up, rec)

	// Caller-supplied rate and encoding are superseded by the conversion.
	_, err := p.Run(context.Background(), Params{
		Input:       input,
		Language:    "en-US",
		MinSpeakers: 1,
		MaxSpeakers: 5,
		SampleRate:  44100,
		Encoding:    speechpb.RecognitionConfig_LINEAR16,
		OutputPath:  outPath,
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if up.path != flacPath {
		t.Errorf("uploaded path = %q, want converted %q", up.path, flacPath)
	}
	if rec.got.Encoding != speechpb.RecognitionConfig_FLAC {
		t.Errorf("encoding = %v, want FLAC after conversion", rec.got.Encoding)
	}
	if rec.got.SampleRateHertz != audio.FLACSampleRate {
		t.Errorf("sample rate = %d, want %d after conversion", rec.got.SampleRateHertz, audio.FLACSampleRate)
	}
	if !cleaned {
		t.Error("intermediate FLAC was not cleaned up")
	}
}

func TestRunUploadFailureCleansUp(t *testing.T) {
	input := writeInput(t, "meeting.mp3")
	outPath := filepath.Join(t.TempDir(), "out.txt")
	cleaned := false
	up := &fakeUploader{err: errors.New("connection reset")}
	rec := &fakeRecognizer{}
	p := newPipeline(fakeConverter("converted.flac", &cleaned, nil), up, rec)

	_, err := p.Run(context.Background(), Params{Input: input, OutputPath: outPath})
	if err == nil || !strings.Contains(err.Error(), "upload audio") {
		t.Fatalf("Run() error = %v, want upload failure", err)
	}
	if !cleaned {
		t.Error("intermediate FLAC was not cleaned up after upload failure")
	}
	if rec.calls != 0 {
		t.Errorf("recognizer called %d times after upload failure, want 0", rec.calls)
	}
	requireAbsent(t, outPath)
}

func TestRunConvertFailure(t *testing.T) {
	input := writeInput(t, "meeting.mp3")
	outPath := filepath.Join(t.TempDir(), "out.txt")
	cleaned := false
	up := &fakeUploader{}
	p := newPipeline(fakeConverter("", &cleaned, errors.New("exit status 1")), up, &fakeRecognizer{})

	_, err := p.Run(context.Background(), Params{Input: input, OutputPath: outPath})
	if err == nil || !strings.Contains(err.Error(), "convert audio") {
		t.Fatalf("Run() error = %v, want conversion failure", err)
	}
	if up.calls != 0 {
		t.Errorf("uploader called %d times after conversion failure, want 0", up.calls)
	}
	requireAbsent(t, outPath)
}

func TestRunRemoteInput(t *testing.T) {
	const uri = "gs://media/calls/support.flac"
	outPath := filepath.Join(t.TempDir(), "out.txt")
	rec := &fakeRecognizer{words: sampleWords}
	p := newPipeline(nil, nil, rec) // nil uploader: remote input must never touch it

	res, err := p.Run(context.Background(), Params{
		Input:      uri,
		Language:   "es-ES",
		SampleRate: 16000,
		Encoding:   speechpb.RecognitionConfig_LINEAR16,
		OutputPath: outPath,
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if rec.got.URI != uri {
		t.Errorf("recognized URI = %q, want input %q", rec.got.URI, uri)
	}
	if rec.got.Encoding != speechpb.RecognitionConfig_LINEAR16 || rec.got.SampleRateHertz != 16000 {
		t.Errorf("got sample rate %d encoding %v, want caller values untouched", rec.got.SampleRateHertz, rec.got.Encoding)
	}
	if res.AudioURI != uri {
		t.Errorf("result URI = %q, want %q", res.AudioURI, uri)
	}
	if _, err := os.Stat(outPath); err != nil {
		t.Errorf("transcript not written: %v", err)
	}
}

func TestRunNoResults(t *testing.T) {
	input := writeInput(t, "silence.flac")
	outPath := filepath.Join(t.TempDir(), "out.txt")
	rec := &fakeRecognizer{err: transcribe.ErrNoResults}
	p := newPipeline(nil, &fakeUploader{uri: "gs://media/x"}, rec)

	_, err := p.Run(context.Background(), Params{Input: input, OutputPath: outPath})
	if err == nil {
		t.Fatal("Run() error = nil, want empty-result failure")
	}
	if !transcribe.IsEmptyResult(err) {
		t.Errorf("IsEmptyResult(%v) = false, want true", err)
	}
	if !strings.Contains(err.Error(), "--enhanced") {
		t.Errorf("error %q missing remediation hint", err)
	}
	requireAbsent(t, outPath)
}

func TestRunRecognizeError(t *testing.T) {
	input := writeInput(t, "call.flac")
	outPath := filepath.Join(t.TempDir(), "out.txt")
	rec := &fakeRecognizer{err: errors.New("rpc error: code = Internal")}
	p := newPipeline(nil, &fakeUploader{uri: "gs://media/x"}, rec)

	_, err := p.Run(context.Background(), Params{Input: input, OutputPath: outPath})
	if err == nil || !strings.Contains(err.Error(), "recognize:") {
		t.Fatalf("Run() error = %v, want recognize failure", err)
	}
	if transcribe.IsEmptyResult(err) {
		t.Errorf("IsEmptyResult(%v) = true for a hard API error", err)
	}
	requireAbsent(t, outPath)
}

func TestRunStatsTrailer(t *testing.T) {
	input := writeInput(t, "interview.flac")
	outPath := filepath.Join(t.TempDir(), "out.txt")
	up := &fakeUploader{uri: "gs://media/audio_uploads/interview.flac_1700000000"}
	p := newPipeline(nil, up, &fakeRecognizer{words: sampleWords})

	_, err := p.Run(context.Background(), Params{Input: input, OutputPath: outPath, Stats: true})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("read transcript: %v", err)
	}
	content := string(data)
	if !strings.HasPrefix(content, wantTranscript) {
		t.Errorf("transcript = %q, want prefix %q", content, wantTranscript)
	}
	for _, line := range []string{"Words: 3", "Speaker turns: 2", "Audio source: " + up.uri} {
		if !strings.Contains(content, line) {
			t.Errorf("transcript missing stats line %q", line)
		}
	}
}

func TestRunMissingInput(t *testing.T) {
	outPath := filepath.Join(t.TempDir(), "out.txt")
	up := &fakeUploader{}
	rec := &fakeRecognizer{}
	cleaned := false
	p := newPipeline(fakeConverter("x.flac", &cleaned, nil), up, rec)

	_, err := p.Run(context.Background(), Params{
		Input:      filepath.Join(t.TempDir(), "absent.mp3"),
		OutputPath: outPath,
	})
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("Run() error = %v, want wrapped os.ErrNotExist", err)
	}
	if up.calls != 0 || rec.calls != 0 || cleaned {
		t.Error("pipeline stages ran despite missing input")
	}
	requireAbsent(t, outPath)
}
