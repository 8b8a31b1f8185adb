package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"cloud.google.com/go/speech/apiv1p1beta1/speechpb"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/wilsoncelyCUC/google-speech-transcription-diarization/internal/audio"
	"github.com/wilsoncelyCUC/google-speech-transcription-diarization/internal/config"
	"github.com/wilsoncelyCUC/google-speech-transcription-diarization/internal/output"
	"github.com/wilsoncelyCUC/google-speech-transcription-diarization/internal/pipeline"
	"github.com/wilsoncelyCUC/google-speech-transcription-diarization/internal/progress"
	"github.com/wilsoncelyCUC/google-speech-transcription-diarization/internal/storage"
	"github.com/wilsoncelyCUC/google-speech-transcription-diarization/internal/transcribe"
)

var version = "dev"

// errRunFailed marks a runtime failure already reported through the logger.
// It separates pipeline failures (exit 1) from usage errors (exit 2).
var errRunFailed = errors.New("run failed")

type options struct {
	language    string
	minSpeakers int
	maxSpeakers int
	sampleRate  int
	encoding    string
	output      string
	enhanced    bool
	envFile     string
	logLevel    string
	noProgress  bool
	stats       bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		if errors.Is(err, errRunFailed) {
			os.Exit(1)
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		fmt.Fprintln(os.Stderr, "Run 'transcribe --help' for usage.")
		os.Exit(2)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "transcribe [flags] <audio-file|gs://uri>",
		Short: "Transcribe an audio file with speaker diarization",
		Long: `Transcribe submits an audio file to Google Cloud Speech-to-Text with
speaker diarization enabled and writes a plain-text transcript grouped
into per-speaker utterance blocks.

Local MP3 files are converted to FLAC with ffmpeg and uploaded to a
Google Cloud Storage bucket before recognition. Audio already in the
bucket can be given as a gs:// URI. Non-MP3 input requires --encoding,
plus --sample-rate for LINEAR16, FLAC and MULAW.`,
		Example: `  transcribe interview.mp3
  transcribe --stats -l es-ES meeting.mp3
  transcribe --encoding LINEAR16 --sample-rate 16000 gs://bucket/call.wav`,
		Args:          cobra.ExactArgs(1),
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), args[0], opts)
		},
	}

	fl := cmd.Flags()
	fl.StringVarP(&opts.language, "language", "l", "en-US", "BCP-47 language code of the audio")
	fl.IntVar(&opts.minSpeakers, "min-speakers", 1, "minimum number of distinct speakers expected")
	fl.IntVar(&opts.maxSpeakers, "max-speakers", 5, "maximum number of distinct speakers expected")
	fl.IntVar(&opts.sampleRate, "sample-rate", 0, "sample rate in hertz of non-MP3 input")
	fl.StringVar(&opts.encoding, "encoding", "", "encoding of non-MP3 input: "+strings.Join(transcribe.SupportedEncodings(), ", "))
	fl.StringVarP(&opts.output, "output", "o", "", "transcript path (default output/<name>_<timestamp>_diarized.txt)")
	fl.BoolVar(&opts.enhanced, "enhanced", false, "use the enhanced long-form model")
	fl.StringVar(&opts.envFile, "env-file", "", "env file to load (default \".env\" when present)")
	fl.StringVar(&opts.logLevel, "log-level", "", "log level override: trace, debug, info, warn, error")
	fl.BoolVar(&opts.noProgress, "no-progress", false, "disable progress bars")
	fl.BoolVar(&opts.stats, "stats", false, "append word and speaker-turn counts to the transcript")
	return cmd
}

func run(ctx context.Context, input string, opts *options) error {
	// Usage validation before any config or network work; these errors are
	// printed by main and exit 2.
	if opts.minSpeakers < 1 {
		return fmt.Errorf("--min-speakers must be at least 1, got %d", opts.minSpeakers)
	}
	if opts.maxSpeakers < opts.minSpeakers {
		return fmt.Errorf("--max-speakers (%d) must not be below --min-speakers (%d)", opts.maxSpeakers, opts.minSpeakers)
	}

	remote := audio.IsRemote(input)
	converts := !remote && audio.NeedsConversion(input)

	enc := speechpb.RecognitionConfig_ENCODING_UNSPECIFIED
	if opts.encoding != "" {
		var err error
		if enc, err = transcribe.ParseEncoding(opts.encoding); err != nil {
			return err
		}
	}

	var ignored []string
	if converts {
		if opts.encoding != "" {
			ignored = append(ignored, "--encoding")
		}
		if opts.sampleRate != 0 {
			ignored = append(ignored, "--sample-rate")
		}
	} else {
		if opts.encoding == "" {
			return fmt.Errorf("--encoding is required for non-MP3 input (supported: %s)",
				strings.Join(transcribe.SupportedEncodings(), ", "))
		}
		if transcribe.RequiresSampleRate(enc) && opts.sampleRate == 0 {
			return fmt.Errorf("--sample-rate is required for %s input", strings.ToUpper(opts.encoding))
		}
	}

	cfg, err := config.Load(config.Overrides{EnvFile: opts.envFile, LogLevel: opts.logLevel})
	if err != nil {
		early := zerolog.New(os.Stderr).With().Timestamp().Logger()
		early.Fatal().Err(err).Msg("failed to load config")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	var logOut io.Writer = os.Stderr
	if isatty.IsTerminal(os.Stderr.Fd()) {
		logOut = zerolog.ConsoleWriter{Out: os.Stderr}
	}
	log := zerolog.New(logOut).With().Timestamp().Logger().Level(level)
	log.Info().Str("version", version).Msg("transcribe starting")

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	if len(ignored) > 0 {
		log.Warn().Strs("flags", ignored).Msg("mp3 input is always converted to flac, flags ignored")
	}

	outPath := opts.output
	if outPath == "" {
		outPath = output.DefaultPath(cfg.OutputDir, audio.BaseName(input), time.Now())
		log.Info().Str("output", outPath).Msg("using default output path")
	}

	summary := log.Info().
		Str("input", input).
		Str("language", opts.language).
		Int("min_speakers", opts.minSpeakers).
		Int("max_speakers", opts.maxSpeakers).
		Bool("enhanced", opts.enhanced)
	if converts {
		summary = summary.Str("processing", "mp3 converted to flac")
	} else {
		summary = summary.Str("encoding", strings.ToUpper(opts.encoding))
		if opts.sampleRate != 0 {
			summary = summary.Int("sample_rate", opts.sampleRate)
		}
	}
	summary.Msg("configuration")

	bars := progress.New(opts.noProgress)

	// The uploader is only needed for local input; constructing it also
	// verifies bucket access before any transcoding starts.
	var uploader pipeline.Uploader
	if !remote {
		up, err := storage.NewUploader(ctx, storage.UploaderOptions{
			Bucket:          cfg.BucketName,
			CredentialsFile: cfg.CredentialsFile,
			Timeout:         cfg.UploadTimeout,
			Progress:        bars,
			Logger:          log.With().Str("component", "storage").Logger(),
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to prepare upload storage")
		}
		defer up.Close()
		uploader = up
	}

	client, err := transcribe.New(ctx, transcribe.Options{
		CredentialsFile: cfg.CredentialsFile,
		PollInterval:    cfg.PollInterval,
		Timeout:         cfg.OperationTimeout,
		Progress:        bars,
		Logger:          log.With().Str("component", "speech").Logger(),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create speech client")
	}
	defer client.Close()

	p := &pipeline.Pipeline{
		Convert:    audio.ConvertToFLAC,
		Uploader:   uploader,
		Recognizer: client,
		Log:        log.With().Str("component", "pipeline").Logger(),
	}

	if _, err := p.Run(ctx, pipeline.Params{
		Input:       input,
		Language:    opts.language,
		MinSpeakers: opts.minSpeakers,
		MaxSpeakers: opts.maxSpeakers,
		SampleRate:  opts.sampleRate,
		Encoding:    enc,
		Enhanced:    opts.enhanced,
		OutputPath:  outPath,
		Stats:       opts.stats,
	}); err != nil {
		if transcribe.IsEmptyResult(err) {
			log.Error().Err(err).Msg("no transcript produced")
		} else {
			log.Error().Err(err).Msg("transcription failed")
		}
		return errRunFailed
	}
	return nil
}
