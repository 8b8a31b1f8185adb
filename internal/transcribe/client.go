package transcribe

import (
	"context"
	"errors"
	"fmt"
	"time"

	speech "cloud.google.com/go/speech/apiv1p1beta1"
	"cloud.google.com/go/speech/apiv1p1beta1/speechpb"
	"github.com/googleapis/gax-go/v2"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/wilsoncelyCUC/google-speech-transcription-diarization/internal/progress"
)

var (
	// ErrNoResults reports an operation that completed without any results.
	ErrNoResults = errors.New("the service returned no transcription results; check audio quality or recognition parameters")

	// ErrNoWordData reports results that carry no word-level entries, so no
	// speaker attribution is possible.
	ErrNoWordData = errors.New("the service returned results without word-level data; check audio or recognition parameters")
)

// IsEmptyResult reports whether err is one of the empty-result conditions,
// as opposed to a transport or service failure.
func IsEmptyResult(err error) bool {
	return errors.Is(err, ErrNoResults) || errors.Is(err, ErrNoWordData)
}

// Client runs long-running diarized recognition against the Speech-to-Text
// service.
type Client struct {
	api          *speech.Client
	pollInterval time.Duration
	timeout      time.Duration
	progress     *progress.Renderer
	log          zerolog.Logger
}

// Options configure the recognition client.
type Options struct {
	// CredentialsFile overrides application default credentials when set.
	CredentialsFile string

	// PollInterval is the delay between operation status checks (default 10s).
	PollInterval time.Duration

	// Timeout bounds the whole operation, submit included (default 30m).
	Timeout time.Duration

	Progress *progress.Renderer
	Logger   zerolog.Logger
}

// New creates a recognition client.
func New(ctx context.Context, opts Options) (*Client, error) {
	var clientOpts []option.ClientOption
	if opts.CredentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(opts.CredentialsFile))
	}
	api, err := speech.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create speech client: %w", err)
	}

	if opts.PollInterval <= 0 {
		opts.PollInterval = 10 * time.Second
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Minute
	}

	return &Client{
		api:          api,
		pollInterval: opts.PollInterval,
		timeout:      opts.Timeout,
		progress:     opts.Progress,
		log:          opts.Logger,
	}, nil
}

// Close releases the underlying API connection.
func (c *Client) Close() error {
	return c.api.Close()
}

// Recognize submits a long-running recognition request for the audio in
// p.URI and polls it to completion, returning the flattened word entries.
func (c *Client) Recognize(ctx context.Context, p RequestParams) ([]WordEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	op, err := c.api.LongRunningRecognize(ctx, BuildRequest(p))
	if err != nil {
		return nil, fmt.Errorf("submit recognition: %w", classifyAPIError(err))
	}
	c.log.Info().
		Str("operation", op.Name()).
		Str("uri", p.URI).
		Str("language", p.LanguageCode).
		Msg("recognition operation started")

	resp, err := c.poll(ctx, op)
	if err != nil {
		return nil, err
	}
	return flattenResponse(resp)
}

// recognizeOperation is the slice of *speech.LongRunningRecognizeOperation
// that poll drives.
type recognizeOperation interface {
	Poll(ctx context.Context, opts ...gax.CallOption) (*speechpb.LongRunningRecognizeResponse, error)
	Done() bool
	Metadata() (*speechpb.LongRunningRecognizeMetadata, error)
	Name() string
}

// poll checks the operation every poll interval until it completes or the
// operation timeout elapses. A timeout is reported as its own failure, never
// as a partial transcript.
func (c *Client) poll(ctx context.Context, op recognizeOperation) (*speechpb.LongRunningRecognizeResponse, error) {
	bar := c.progress.Percent("transcribing")
	defer bar.Close()

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	start := time.Now()
	for {
		resp, err := op.Poll(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, c.pollAborted(ctx)
			}
			return nil, fmt.Errorf("recognition operation: %w", classifyAPIError(err))
		}
		if op.Done() {
			bar.Finish()
			c.log.Info().Dur("elapsed", time.Since(start)).Msg("recognition complete")
			return resp, nil
		}

		if meta, err := op.Metadata(); err == nil && meta != nil {
			bar.Set(int(meta.GetProgressPercent()))
			c.log.Debug().
				Int32("percent", meta.GetProgressPercent()).
				Dur("elapsed", time.Since(start)).
				Msg("recognition in progress")
		}

		select {
		case <-ctx.Done():
			return nil, c.pollAborted(ctx)
		case <-ticker.C:
		}
	}
}

// pollAborted words the two ways a poll loop ends early: the operation
// timeout elapsing, or the caller's context being canceled outright.
func (c *Client) pollAborted(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("recognition did not complete within %s: %w", c.timeout, ctx.Err())
	}
	return fmt.Errorf("recognition canceled: %w", ctx.Err())
}

// flattenResponse collects word entries from every result in response order.
// Results without alternatives are skipped; alternatives without word info
// are remembered so the failure mode can be reported precisely.
func flattenResponse(resp *speechpb.LongRunningRecognizeResponse) ([]WordEntry, error) {
	results := resp.GetResults()
	if len(results) == 0 {
		return nil, ErrNoResults
	}

	var words []WordEntry
	missingWordInfo := false
	for _, res := range results {
		alts := res.GetAlternatives()
		if len(alts) == 0 {
			continue
		}
		infos := alts[0].GetWords()
		if len(infos) == 0 {
			missingWordInfo = true
			continue
		}
		for _, w := range infos {
			words = append(words, WordEntry{
				Text:       w.GetWord(),
				SpeakerTag: int(w.GetSpeakerTag()),
				Start:      w.GetStartTime().AsDuration(),
				End:        w.GetEndTime().AsDuration(),
			})
		}
	}

	if len(words) == 0 {
		if missingWordInfo {
			return nil, ErrNoWordData
		}
		return nil, ErrNoResults
	}
	return words, nil
}

// classifyAPIError appends a remediation hint for well-known failure codes.
// The service's own message is preserved in the chain.
func classifyAPIError(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.Unauthenticated, codes.PermissionDenied:
		return fmt.Errorf("%w (check GOOGLE_APPLICATION_CREDENTIALS and the service account's Speech-to-Text access)", err)
	case codes.NotFound:
		return fmt.Errorf("%w (check that the bucket and audio object exist)", err)
	case codes.InvalidArgument:
		return fmt.Errorf("%w (check --encoding and --sample-rate against the audio file)", err)
	}
	return err
}
