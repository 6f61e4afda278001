// Package printing renders order receipts to PDF through headless Chrome.
package printing

import (
	"bytes"
	"context"
	"fmt"
	"time"
)

// PaperSize is the output page format
type PaperSize string

const (
	PaperSizeA4          PaperSize = "A4"
	PaperSizeReceipt80MM PaperSize = "RECEIPT_80MM"
)

// paperMM is width and height in millimetres. Roll paper has no fixed
// height; it gets a page tall enough that a receipt never breaks.
var paperMM = map[PaperSize][2]float64{
	PaperSizeA4:          {210, 297},
	PaperSizeReceipt80MM: {80, 1000},
}

func (p PaperSize) IsValid() bool {
	_, ok := paperMM[p]
	return ok
}

// Margins in millimetres
type Margins struct {
	Top, Right, Bottom, Left float64
}

type RenderRequest struct {
	HTML      string
	PaperSize PaperSize
	Margins   Margins
	// Title is used when HTML is a fragment that needs a document around it
	Title   string
	Timeout time.Duration
}

type RenderResult struct {
	PDFData        []byte
	PageCount      int
	RenderDuration time.Duration
}

// PDFRenderer turns HTML into a PDF document
type PDFRenderer interface {
	Render(ctx context.Context, req *RenderRequest) (*RenderResult, error)
	Close() error
}

const (
	ErrCodeRenderTimeout    = "RENDER_TIMEOUT"
	ErrCodeRenderFailed     = "RENDER_FAILED"
	ErrCodeInvalidHTML      = "INVALID_HTML"
	ErrCodeInvalidPaperSize = "INVALID_PAPER_SIZE"
)

// RenderError carries one of the ErrCode constants
type RenderError struct {
	Code    string
	Message string
	Cause   error
}

func NewRenderError(code, message string, cause error) *RenderError {
	return &RenderError{Code: code, Message: message, Cause: cause}
}

func (e *RenderError) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Cause)
}

func (e *RenderError) Unwrap() error { return e.Cause }

// countPages counts /Type /Page objects, leaving out the /Type /Pages root
func countPages(pdf []byte) int {
	n := bytes.Count(pdf, []byte("/Type /Page")) - bytes.Count(pdf, []byte("/Type /Pages"))
	return max(n, 1)
}
