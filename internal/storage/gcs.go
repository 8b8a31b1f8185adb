package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	gcs "cloud.google.com/go/storage"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"

	"github.com/wilsoncelyCUC/google-speech-transcription-diarization/internal/progress"
)

// uploadPrefix groups this tool's objects inside the bucket.
const uploadPrefix = "audio_uploads"

// contentTypes maps the audio extensions this tool handles to MIME types.
var contentTypes = map[string]string{
	".flac": "audio/flac",
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".ogg":  "audio/ogg",
	".opus": "audio/opus",
}

// Uploader streams local audio files into a Cloud Storage bucket so the
// recognition service can read them by gs:// reference.
type Uploader struct {
	client   *gcs.Client
	bucket   string
	timeout  time.Duration
	progress *progress.Renderer
	log      zerolog.Logger
}

// UploaderOptions configure the uploader.
type UploaderOptions struct {
	Bucket string

	// CredentialsFile overrides application default credentials when set.
	CredentialsFile string

	// Timeout bounds a single upload (default 10m).
	Timeout time.Duration

	Progress *progress.Renderer
	Logger   zerolog.Logger
}

// NewUploader creates the uploader and verifies the bucket is reachable, so
// bad credentials or a bad bucket name fail before any audio is transcoded.
func NewUploader(ctx context.Context, opts UploaderOptions) (*Uploader, error) {
	var clientOpts []option.ClientOption
	if opts.CredentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(opts.CredentialsFile))
	}
	client, err := gcs.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}

	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if _, err := client.Bucket(opts.Bucket).Attrs(checkCtx); err != nil {
		client.Close()
		return nil, fmt.Errorf("bucket check failed (bucket=%q): %w", opts.Bucket, err)
	}
	opts.Logger.Info().Str("bucket", opts.Bucket).Msg("bucket access verified")

	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Minute
	}

	return &Uploader{
		client:   client,
		bucket:   opts.Bucket,
		timeout:  opts.Timeout,
		progress: opts.Progress,
		log:      opts.Logger,
	}, nil
}

// Close releases the underlying client connection.
func (u *Uploader) Close() error {
	return u.client.Close()
}

// Upload streams the file at path into the bucket and returns the object's
// gs:// URI.
func (u *Uploader) Upload(ctx context.Context, path string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", path, err)
	}

	key := ObjectKey(filepath.Base(path), time.Now())
	u.log.Info().
		Str("bucket", u.bucket).
		Str("object", key).
		Int64("size_bytes", info.Size()).
		Msg("uploading audio")

	w := u.client.Bucket(u.bucket).Object(key).NewWriter(ctx)
	w.ContentType = ContentTypeFor(path)

	bar := u.progress.Bytes(info.Size(), "uploading")
	defer bar.Close()

	if _, err := io.Copy(io.MultiWriter(w, bar), f); err != nil {
		w.Close()
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalize upload %s: %w", key, err)
	}
	bar.Finish()

	uri := fmt.Sprintf("gs://%s/%s", u.bucket, key)
	u.log.Info().Str("uri", uri).Msg("upload complete")
	return uri, nil
}

// ObjectKey names an uploaded object: audio_uploads/{basename}_{unix seconds}.
// The timestamp suffix keeps repeated runs on the same file from colliding.
func ObjectKey(basename string, now time.Time) string {
	return fmt.Sprintf("%s/%s_%d", uploadPrefix, basename, now.Unix())
}

// ContentTypeFor returns the MIME type for an audio path, defaulting to
// application/octet-stream for extensions outside the supported set.
func ContentTypeFor(path string) string {
	if ct, ok := contentTypes[strings.ToLower(filepath.Ext(path))]; ok {
		return ct
	}
	return "application/octet-stream"
}
