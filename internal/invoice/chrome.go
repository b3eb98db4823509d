package invoice

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	cdppage "github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

const defaultChromeTimeout = 30 * time.Second

// InvoiceSelector is the element captured by the screenshot.
const InvoiceSelector = "#invoice"

type ChromeConfig struct {
	// RemoteURL points at a running Chrome DevTools endpoint. Empty launches a local headless browser.
	RemoteURL string
	// NoSandbox is needed when running as root in a container.
	NoSandbox bool
	Timeout   time.Duration
	Logger    *zap.Logger
}

// ChromeRenderer screenshots the invoice element with headless Chrome.
type ChromeRenderer struct {
	timeout     time.Duration
	log         *zap.Logger
	allocCtx    context.Context
	allocCancel context.CancelFunc
}

func NewChromeRenderer(cfg ChromeConfig) *ChromeRenderer {
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultChromeTimeout
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	r := &ChromeRenderer{timeout: cfg.Timeout, log: log}
	if cfg.RemoteURL != "" {
		r.allocCtx, r.allocCancel = chromedp.NewRemoteAllocator(context.Background(), cfg.RemoteURL)
		return r
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("font-render-hinting", "none"),
		chromedp.WindowSize(480, 1200),
	)
	if cfg.NoSandbox {
		opts = append(opts, chromedp.NoSandbox)
	}
	r.allocCtx, r.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	return r
}

func (r *ChromeRenderer) RenderPNG(ctx context.Context, html string) ([]byte, error) {
	if strings.TrimSpace(html) == "" {
		return nil, errors.New("invoice: html is empty")
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	browserCtx, browserCancel := chromedp.NewContext(r.allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			r.log.Debug(fmt.Sprintf(format, args...))
		}),
	)
	defer browserCancel()

	// tie the browser tab to the caller's deadline
	stop := context.AfterFunc(ctx, browserCancel)
	defer stop()

	start := time.Now()
	var png []byte
	err := chromedp.Run(browserCtx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := cdppage.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return cdppage.SetDocumentContent(tree.Frame.ID, html).Do(ctx)
		}),
		chromedp.Screenshot(InvoiceSelector, &png, chromedp.NodeVisible, chromedp.ByQuery),
	)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("invoice: render timed out after %v: %w", r.timeout, ctx.Err())
		}
		r.log.Error("chromedp rendering failed", zap.Error(err))
		return nil, fmt.Errorf("invoice: render png: %w", err)
	}
	if len(png) == 0 {
		return nil, errors.New("invoice: rendered image is empty")
	}

	r.log.Debug("invoice rendered",
		zap.Int("bytes", len(png)),
		zap.Duration("duration", time.Since(start)))
	return png, nil
}

func (r *ChromeRenderer) Close() error {
	if r.allocCancel != nil {
		r.allocCancel()
	}
	return nil
}

var _ Renderer = (*ChromeRenderer)(nil)
