package printing

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"html"
	"image/png"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/erp/labelprint/internal/domain/printing"
	"go.uber.org/zap"
)

const defaultChromeTimeout = 30 * time.Second

// ChromedpConfig contains configuration for the chromedp encoder
type ChromedpConfig struct {
	// DefaultTimeout for one encode operation
	DefaultTimeout time.Duration
	// RemoteURL is the URL of a remote Chrome/Chromium instance (optional)
	// If empty, chromedp will launch a new browser instance
	RemoteURL string
	// NoSandbox runs Chrome without sandbox (required for Docker/root)
	NoSandbox bool
	// Logger for debug output
	Logger *zap.Logger
}

// ChromedpEncoder prints an HTML page set of sheet images to PDF through
// the Chrome DevTools Protocol
type ChromedpEncoder struct {
	config      *ChromedpConfig
	logger      *zap.Logger
	allocCtx    context.Context
	allocCancel context.CancelFunc
}

// NewChromedpEncoder creates a new chromedp-based encoder
func NewChromedpEncoder(config *ChromedpConfig) *ChromedpEncoder {
	if config == nil {
		config = &ChromedpConfig{}
	}
	if config.DefaultTimeout == 0 {
		config.DefaultTimeout = defaultChromeTimeout
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	e := &ChromedpEncoder{config: config, logger: logger}
	e.initAllocator()
	return e
}

func (e *ChromedpEncoder) initAllocator() {
	if e.config.RemoteURL != "" {
		e.allocCtx, e.allocCancel = chromedp.NewRemoteAllocator(context.Background(), e.config.RemoteURL)
		return
	}
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-background-networking", true),
	)
	if e.config.NoSandbox {
		opts = append(opts, chromedp.Flag("no-sandbox", true))
	}
	e.allocCtx, e.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
}

// Encode renders one HTML page per sheet and prints it with zero margins
func (e *ChromedpEncoder) Encode(ctx context.Context, req *EncodeRequest) (*printing.Document, error) {
	if req == nil || req.Sheets == nil || len(req.Sheets.Pages) == 0 {
		return nil, NewRenderError(ErrCodeInvalidRequest, "nothing to encode", nil)
	}
	doc, err := buildSheetHTML(req)
	if err != nil {
		return nil, err
	}
	params := sheetPrintParams(req.Sheets.Geometry)

	ctx, cancel := context.WithTimeout(ctx, e.config.DefaultTimeout)
	defer cancel()
	browserCtx, browserCancel := chromedp.NewContext(e.allocCtx,
		chromedp.WithLogf(func(format string, args ...interface{}) {
			e.logger.Debug(fmt.Sprintf(format, args...))
		}),
	)
	defer browserCancel()
	// tie the browser tab to the caller's deadline
	stop := context.AfterFunc(ctx, browserCancel)
	defer stop()

	var pdfData []byte
	err = chromedp.Run(browserCtx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			frameTree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(frameTree.Frame.ID, doc).Do(ctx)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			data, _, err := page.PrintToPDF().
				WithPrintBackground(true).
				WithPaperWidth(params.paperWidth).
				WithPaperHeight(params.paperHeight).
				WithMarginTop(0).
				WithMarginRight(0).
				WithMarginBottom(0).
				WithMarginLeft(0).
				WithPreferCSSPageSize(true).
				Do(ctx)
			if err != nil {
				return err
			}
			pdfData = data
			return nil
		}),
	)
	if err != nil {
		if ctx.Err() != nil {
			return nil, NewRenderError(ErrCodeRenderTimeout, "PDF encoding timed out or was cancelled", err)
		}
		e.logger.Error("chromedp encoding failed", zap.Error(err))
		return nil, NewRenderError(ErrCodeEncodeFailed, "chromedp execution failed", err)
	}
	if len(pdfData) == 0 {
		return nil, NewRenderError(ErrCodeEncodeFailed, "generated PDF is empty", nil)
	}

	created := req.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	return &printing.Document{
		JobID:       req.JobID,
		Title:       req.Title,
		ContentType: printing.ContentTypePDF,
		Data:        pdfData,
		PageCount:   len(req.Sheets.Pages),
		LabelCount:  req.Sheets.LabelCount,
		CreatedAt:   created,
	}, nil
}

type printParams struct {
	paperWidth  float64
	paperHeight float64
}

// sheetPrintParams returns the paper size in inches, which Chrome expects
func sheetPrintParams(g printing.SheetGeometry) printParams {
	return printParams{paperWidth: g.SheetWidth, paperHeight: g.SheetHeight}
}

// buildSheetHTML embeds every sheet as a data URL on its own page
func buildSheetHTML(req *EncodeRequest) (string, error) {
	g := req.Sheets.Geometry
	var buf bytes.Buffer
	buf.WriteString("<!DOCTYPE html><html><head><meta charset=\"UTF-8\">")
	if req.Title != "" {
		buf.WriteString("<title>")
		buf.WriteString(html.EscapeString(req.Title))
		buf.WriteString("</title>")
	}
	fmt.Fprintf(&buf, "<style>@page{size:%.4fin %.4fin;margin:0}"+
		"html,body{margin:0;padding:0}"+
		"img{display:block;width:%.4fin;height:%.4fin;page-break-after:always}"+
		"img:last-child{page-break-after:auto}</style></head><body>",
		g.SheetWidth, g.SheetHeight, g.SheetWidth, g.SheetHeight)

	for i, p := range req.Sheets.Pages {
		var img bytes.Buffer
		if err := png.Encode(&img, p); err != nil {
			return "", NewRenderError(ErrCodeEncodeFailed, fmt.Sprintf("encode page %d", i+1), err)
		}
		buf.WriteString("<img alt=\"sheet\" src=\"data:image/png;base64,")
		buf.WriteString(base64.StdEncoding.EncodeToString(img.Bytes()))
		buf.WriteString("\">")
	}
	buf.WriteString("</body></html>")
	return buf.String(), nil
}

// Close releases resources held by the encoder
func (e *ChromedpEncoder) Close() error {
	if e.allocCancel != nil {
		e.allocCancel()
	}
	return nil
}

// Ensure ChromedpEncoder implements DocumentEncoder
var _ DocumentEncoder = (*ChromedpEncoder)(nil)
