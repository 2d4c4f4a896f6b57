// Package snapshot rasterizes HTML documents in headless Chrome.
package snapshot

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"sync"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
)

const DefaultTimeout = 30 * time.Second

// Renderer turns a complete HTML document into an image of size.
type Renderer interface {
	RenderHTML(ctx context.Context, html string, size image.Point) (image.Image, error)
}

// RenderError reports which step of a snapshot failed.
type RenderError struct {
	Op  string
	Err error
}

func (e *RenderError) Error() string { return fmt.Sprintf("snapshot %s: %v", e.Op, e.Err) }

func (e *RenderError) Unwrap() error { return e.Err }

type ChromeOptions struct {
	// ExecPath overrides Chrome discovery.
	ExecPath string
	Timeout  time.Duration
}

// ChromeRenderer keeps one browser process and opens a tab per render. The
// browser starts on first use and is restarted after it fails.
type ChromeRenderer struct {
	opts ChromeOptions

	mu            sync.Mutex
	browser       context.Context
	cancelBrowser context.CancelFunc
}

func NewChromeRenderer(opts ChromeOptions) *ChromeRenderer {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &ChromeRenderer{opts: opts}
}

func (r *ChromeRenderer) browserContext() (context.Context, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.browser != nil && r.browser.Err() == nil {
		return r.browser, nil
	}

	allocOpts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	allocOpts = append(allocOpts,
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("font-render-hinting", "none"),
		chromedp.DisableGPU,
		chromedp.NoSandbox,
	)
	if r.opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(r.opts.ExecPath))
	}
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	browserCtx, cancelCtx := chromedp.NewContext(allocCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		cancelCtx()
		cancelAlloc()
		return nil, &RenderError{Op: "start browser", Err: err}
	}
	r.browser = browserCtx
	r.cancelBrowser = func() {
		cancelCtx()
		cancelAlloc()
	}
	slog.Info("headless browser started")
	return r.browser, nil
}

// RenderHTML loads html into a fresh tab with a size viewport and captures
// it once web fonts are ready.
func (r *ChromeRenderer) RenderHTML(ctx context.Context, html string, size image.Point) (image.Image, error) {
	if size.X <= 0 || size.Y <= 0 {
		return nil, &RenderError{Op: "viewport", Err: fmt.Errorf("invalid size %dx%d", size.X, size.Y)}
	}
	browser, err := r.browserContext()
	if err != nil {
		return nil, err
	}
	tab, cancelTab := chromedp.NewContext(browser)
	defer cancelTab()
	tab, cancelTimeout := context.WithTimeout(tab, r.opts.Timeout)
	defer cancelTimeout()
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	var (
		shot  []byte
		ready bool
	)
	err = chromedp.Run(tab,
		chromedp.EmulateViewport(int64(size.X), int64(size.Y)),
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(tree.Frame.ID, html).Do(ctx)
		}),
		chromedp.Evaluate(`document.fonts.ready.then(() => true)`, &ready, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
			return p.WithAwaitPromise(true)
		}),
		chromedp.CaptureScreenshot(&shot),
	)
	if err != nil {
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		return nil, &RenderError{Op: "capture", Err: err}
	}
	img, err := png.Decode(bytes.NewReader(shot))
	if err != nil {
		return nil, &RenderError{Op: "decode", Err: err}
	}
	return img, nil
}

// Close stops the browser process.
func (r *ChromeRenderer) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancelBrowser != nil {
		r.cancelBrowser()
		r.browser, r.cancelBrowser = nil, nil
	}
}
