package progress

import (
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
)

// Renderer hands out progress bars for the pipeline stages. When disabled
// (no terminal, or suppressed by flag) every method returns a silent bar, so
// call sites never branch. A nil Renderer behaves as disabled.
type Renderer struct {
	enabled bool
	out     io.Writer
}

// New creates a renderer writing to stderr. Bars are shown only when stderr
// is a terminal and suppress is false; stdout stays clean either way.
func New(suppress bool) *Renderer {
	return &Renderer{
		enabled: !suppress && isatty.IsTerminal(os.Stderr.Fd()),
		out:     os.Stderr,
	}
}

// Enabled reports whether bars will actually render.
func (r *Renderer) Enabled() bool {
	return r != nil && r.enabled
}

// Bytes returns a byte-count bar sized for an upload. The bar implements
// io.Writer, so it can tee the upload stream.
func (r *Renderer) Bytes(total int64, description string) *progressbar.ProgressBar {
	if !r.Enabled() {
		return progressbar.DefaultBytesSilent(total, description)
	}
	return progressbar.NewOptions64(total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(r.out),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWidth(30),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
}

// Percent returns a 0-100 bar driven by the recognition operation's reported
// progress.
func (r *Renderer) Percent(description string) *progressbar.ProgressBar {
	if !r.Enabled() {
		return progressbar.DefaultSilent(100, description)
	}
	return progressbar.NewOptions64(100,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(r.out),
		progressbar.OptionSetWidth(30),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionClearOnFinish(),
	)
}
