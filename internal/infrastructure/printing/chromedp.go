package printing

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/cryptonexus/backend/internal/infrastructure/config"
)

const defaultRenderTimeout = 30 * time.Second

// ChromedpRenderer prints HTML with a headless Chrome. Each render opens
// its own tab on a shared browser, which starts on first use.
type ChromedpRenderer struct {
	timeout     time.Duration
	logger      *zap.Logger
	allocCtx    context.Context
	allocCancel context.CancelFunc
}

// NewChromedpRenderer connects to cfg.RemoteURL when set and otherwise
// launches a local Chrome.
func NewChromedpRenderer(cfg config.ReceiptConfig, logger *zap.Logger) *ChromedpRenderer {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &ChromedpRenderer{timeout: cfg.Timeout, logger: logger}
	if r.timeout <= 0 {
		r.timeout = defaultRenderTimeout
	}

	if cfg.RemoteURL != "" {
		r.allocCtx, r.allocCancel = chromedp.NewRemoteAllocator(context.Background(), cfg.RemoteURL)
		return r
	}
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.DisableGPU,
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("font-render-hinting", "none"),
	)
	if cfg.NoSandbox {
		opts = append(opts, chromedp.NoSandbox)
	}
	r.allocCtx, r.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	return r
}

func (r *ChromedpRenderer) Render(ctx context.Context, req *RenderRequest) (*RenderResult, error) {
	switch {
	case req == nil || strings.TrimSpace(req.HTML) == "":
		return nil, NewRenderError(ErrCodeInvalidHTML, "HTML content is empty", nil)
	case !req.PaperSize.IsValid():
		return nil, NewRenderError(ErrCodeInvalidPaperSize, fmt.Sprintf("unknown paper size %q", req.PaperSize), nil)
	}

	started := time.Now()
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = r.timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	tab, closeTab := chromedp.NewContext(r.allocCtx, chromedp.WithLogf(r.logger.Sugar().Debugf))
	defer closeTab()
	// The tab hangs off the allocator, so the caller's deadline is relayed by hand.
	defer context.AfterFunc(ctx, closeTab)()

	var pdf []byte
	err := chromedp.Run(tab,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(tree.Frame.ID, document(req)).Do(ctx)
		}),
		chromedp.ActionFunc(func(ctx context.Context) (err error) {
			pdf, _, err = printParams(req).Do(ctx)
			return err
		}),
	)
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return nil, NewRenderError(ErrCodeRenderTimeout, fmt.Sprintf("rendering timed out after %v", timeout), err)
	case ctx.Err() != nil:
		return nil, NewRenderError(ErrCodeRenderTimeout, "rendering was cancelled", ctx.Err())
	case err != nil:
		r.logger.Error("Chrome failed to render PDF", zap.Error(err))
		return nil, NewRenderError(ErrCodeRenderFailed, "chrome print failed", err)
	case len(pdf) == 0:
		return nil, NewRenderError(ErrCodeRenderFailed, "chrome returned an empty PDF", nil)
	}

	result := &RenderResult{PDFData: pdf, PageCount: countPages(pdf), RenderDuration: time.Since(started)}
	r.logger.Debug("PDF rendered",
		zap.Int("bytes", len(pdf)),
		zap.Int("pages", result.PageCount),
		zap.Duration("duration", result.RenderDuration))
	return result, nil
}

// printParams converts the request's millimetres to the inches Chrome expects
func printParams(req *RenderRequest) *page.PrintToPDFParams {
	size := paperMM[req.PaperSize]
	in := func(mm float64) float64 { return mm / 25.4 }
	return page.PrintToPDF().
		WithPrintBackground(true).
		WithPreferCSSPageSize(false).
		WithPaperWidth(in(size[0])).
		WithPaperHeight(in(size[1])).
		WithMarginTop(in(req.Margins.Top)).
		WithMarginRight(in(req.Margins.Right)).
		WithMarginBottom(in(req.Margins.Bottom)).
		WithMarginLeft(in(req.Margins.Left))
}

// document wraps an HTML fragment; complete documents pass through.
func document(req *RenderRequest) string {
	head := strings.ToLower(req.HTML[:min(len(req.HTML), 512)])
	if strings.Contains(head, "<!doctype") || strings.Contains(head, "<html") {
		return req.HTML
	}
	return `<!DOCTYPE html><html><head><meta charset="UTF-8"><title>` + html.EscapeString(req.Title) +
		`</title></head><body>` + req.HTML + `</body></html>`
}

// Close shuts the browser down
func (r *ChromedpRenderer) Close() error {
	r.allocCancel()
	return nil
}

var _ PDFRenderer = (*ChromedpRenderer)(nil)
