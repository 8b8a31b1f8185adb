package pipeline

import (
	"context"
	"fmt"
	"os"
	"time"

	"cloud.google.com/go/speech/apiv1p1beta1/speechpb"
	"github.com/rs/zerolog"

	"github.com/wilsoncelyCUC/google-speech-transcription-diarization/internal/audio"
	"github.com/wilsoncelyCUC/google-speech-transcription-diarization/internal/output"
	"github.com/wilsoncelyCUC/google-speech-transcription-diarization/internal/transcribe"
)

// Recognizer submits audio for diarized recognition and returns the word
// entries. Implemented by transcribe.Client.
type Recognizer interface {
	Recognize(ctx context.Context, p transcribe.RequestParams) ([]transcribe.WordEntry, error)
}

// Uploader moves a local file into object storage and returns its gs:// URI.
// Implemented by storage.Uploader; left nil when the input is already remote.
type Uploader interface {
	Upload(ctx context.Context, path string) (string, error)
}

// Converter transcodes a local MP3 to FLAC, returning the new path and a
// cleanup function. Implemented by audio.ConvertToFLAC.
type Converter func(ctx context.Context, path string, log zerolog.Logger) (string, func(), error)

// Params carry one transcription job through the pipeline.
type Params struct {
	Input       string
	Language    string
	MinSpeakers int
	MaxSpeakers int

	// SampleRate and Encoding describe non-MP3 input; both are replaced by
	// the conversion parameters when the input is a local MP3.
	SampleRate int
	Encoding   speechpb.RecognitionConfig_AudioEncoding
	Enhanced   bool

	OutputPath string
	Stats      bool
}

// Result summarizes a completed run.
type Result struct {
	OutputPath string
	AudioURI   string
	Words      int
	Turns      int
}

// Pipeline runs the convert, upload, recognize, assemble, write sequence for
// a single audio input.
type Pipeline struct {
	Convert    Converter
	Uploader   Uploader
	Recognizer Recognizer
	Log        zerolog.Logger
}

// Run executes the pipeline. An intermediate FLAC file, when one is created,
// is removed on every exit path. No output file is written unless
// recognition produced words.
func (p *Pipeline) Run(ctx context.Context, params Params) (*Result, error) {
	start := time.Now()

	if !audio.IsRemote(params.Input) {
		if _, err := os.Stat(params.Input); err != nil {
			return nil, fmt.Errorf("audio source: %w", err)
		}
	}

	// 1. Normalize the input: a local MP3 is converted to FLAC, and the
	// conversion parameters feed the recognition request.
	source := params.Input
	sampleRate := params.SampleRate
	encoding := params.Encoding
	if !audio.IsRemote(source) && audio.NeedsConversion(source) {
		flacPath, cleanup, err := p.Convert(ctx, source, p.Log)
		if err != nil {
			return nil, fmt.Errorf("convert audio: %w", err)
		}
		defer cleanup()
		source = flacPath
		sampleRate = audio.FLACSampleRate
		encoding = speechpb.RecognitionConfig_FLAC
	}

	// 2. Make the audio reachable by the service.
	uri := source
	if !audio.IsRemote(source) {
		var err error
		uri, err = p.Uploader.Upload(ctx, source)
		if err != nil {
			return nil, fmt.Errorf("upload audio: %w", err)
		}
	}

	// 3. Diarized recognition.
	words, err := p.Recognizer.Recognize(ctx, transcribe.RequestParams{
		URI:             uri,
		LanguageCode:    params.Language,
		MinSpeakers:     params.MinSpeakers,
		MaxSpeakers:     params.MaxSpeakers,
		SampleRateHertz: sampleRate,
		Encoding:        encoding,
		Enhanced:        params.Enhanced,
	})
	if err != nil {
		if transcribe.IsEmptyResult(err) {
			return nil, fmt.Errorf("%w (try --enhanced or another --language)", err)
		}
		return nil, fmt.Errorf("recognize: %w", err)
	}

	// 4. Assemble and write the transcript.
	blocks := transcribe.Assemble(words)

	var stats *output.Stats
	if params.Stats {
		stats = &output.Stats{Words: len(words), Turns: len(blocks), AudioSource: uri}
	}
	if err := output.Write(params.OutputPath, blocks, stats); err != nil {
		return nil, fmt.Errorf("write transcript: %w", err)
	}

	p.Log.Info().
		Str("output", params.OutputPath).
		Int("words", len(words)).
		Int("speaker_turns", len(blocks)).
		Dur("elapsed", time.Since(start)).
		Msg("transcription complete")

	return &Result{
		OutputPath: params.OutputPath,
		AudioURI:   uri,
		Words:      len(words),
		Turns:      len(blocks),
	}, nil
}
