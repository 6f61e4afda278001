package printing

import (
	"bytes"
	"context"
	"html/template"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/cryptonexus/backend/internal/domain/shared"
	"github.com/cryptonexus/backend/internal/domain/trade"
)

// currencyPlaces is the display precision per payment currency
var currencyPlaces = map[shared.CryptoCurrency]int32{
	shared.CurrencyBTC: 8,
	shared.CurrencyXMR: 12,
}

// ReceiptLine is one formatted row of a receipt
type ReceiptLine struct {
	Label string
	Value string
}

// ReceiptData is the view model of an order receipt
type ReceiptData struct {
	OrderNumber  string
	IssuedAt     string
	ProductTitle string
	Quantity     string
	UnitPrice    string
	Total        string
	Currency     string
	Status       string
	Details      []ReceiptLine
}

var receiptTemplate = template.Must(template.New("receipt").Parse(`<!DOCTYPE html>
<html><head><meta charset="UTF-8"><title>Receipt {{.OrderNumber}}</title>
<style>
body{font-family:monospace;font-size:11px;margin:0}
h1{font-size:14px;text-align:center;margin:0 0 6px}
table{width:100%;border-collapse:collapse}
td{padding:2px 0;vertical-align:top}
td.v{text-align:right}
.total{border-top:1px dashed #000;font-weight:bold}
</style></head><body>
<h1>Order {{.OrderNumber}}</h1>
<p>Issued {{.IssuedAt}}</p>
<table>
<tr><td>{{.ProductTitle}}</td><td class="v">{{.Quantity}} x {{.UnitPrice}}</td></tr>
<tr class="total"><td>Total</td><td class="v">{{.Total}} {{.Currency}}</td></tr>
</table>
<table>
<tr><td>Status</td><td class="v">{{.Status}}</td></tr>
{{range .Details}}<tr><td>{{.Label}}</td><td class="v">{{.Value}}</td></tr>
{{end}}</table>
</body></html>`))

// ReceiptRenderer produces PDF receipts for orders
type ReceiptRenderer struct {
	pdf     PDFRenderer
	printer *message.Printer
	caser   cases.Caser
	paper   PaperSize
	now     func() time.Time
}

// NewReceiptRenderer creates a receipt renderer. locale is a BCP 47 tag
// used for number grouping; unknown tags fall back to English. Unknown
// paper sizes fall back to 80mm roll paper.
func NewReceiptRenderer(pdf PDFRenderer, locale string, paper PaperSize) *ReceiptRenderer {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.English
	}
	if !paper.IsValid() {
		paper = PaperSizeReceipt80MM
	}
	return &ReceiptRenderer{
		pdf:     pdf,
		printer: message.NewPrinter(tag),
		caser:   cases.Title(tag),
		paper:   paper,
		now:     time.Now,
	}
}

// RenderReceipt renders the receipt of order as PDF
func (r *ReceiptRenderer) RenderReceipt(ctx context.Context, order *trade.Order) ([]byte, error) {
	doc, err := r.ReceiptHTML(order)
	if err != nil {
		return nil, err
	}
	result, err := r.pdf.Render(ctx, &RenderRequest{
		HTML:      doc,
		PaperSize: r.paper,
		Margins:   Margins{Top: 4, Right: 4, Bottom: 4, Left: 4},
		Title:     "Receipt " + order.OrderNumber,
	})
	if err != nil {
		return nil, err
	}
	return result.PDFData, nil
}

// ReceiptHTML renders the receipt document without converting it to PDF
func (r *ReceiptRenderer) ReceiptHTML(order *trade.Order) (string, error) {
	var buf bytes.Buffer
	if err := receiptTemplate.Execute(&buf, r.receiptData(order)); err != nil {
		return "", NewRenderError(ErrCodeInvalidHTML, "receipt template failed", err)
	}
	return buf.String(), nil
}

func (r *ReceiptRenderer) receiptData(order *trade.Order) ReceiptData {
	data := ReceiptData{
		OrderNumber:  order.OrderNumber,
		IssuedAt:     formatTime(r.now()),
		ProductTitle: order.ProductTitle,
		Quantity:     r.printer.Sprintf("%d", order.Quantity),
		UnitPrice:    r.FormatAmount(order.UnitPrice, order.CryptoCurrency),
		Total:        r.FormatAmount(order.TotalAmount, order.CryptoCurrency),
		Currency:     string(order.CryptoCurrency),
		Status:       r.caser.String(strings.ReplaceAll(string(order.Status), "_", " ")),
	}

	add := func(label, value string) {
		data.Details = append(data.Details, ReceiptLine{Label: label, Value: value})
	}
	add("Created", formatTime(order.CreatedAt))
	if order.PaymentAddress != "" {
		add("Payment address", order.PaymentAddress)
	}
	if order.PaymentConfirmedAt != nil {
		add("Paid", formatTime(*order.PaymentConfirmedAt))
	}
	if order.DeliveredAt != nil {
		add("Delivered", formatTime(*order.DeliveredAt))
	}
	if order.ConfirmedAt != nil {
		add("Completed", formatTime(*order.ConfirmedAt))
	}
	if order.UseEscrow {
		add("Escrow", "Yes")
	}
	return data
}

// FormatAmount formats amount at the display precision of currency, with
// locale digit grouping on the integer part
func (r *ReceiptRenderer) FormatAmount(amount decimal.Decimal, currency shared.CryptoCurrency) string {
	places, ok := currencyPlaces[currency]
	if !ok {
		places = 8
	}
	fixed := amount.StringFixed(places)
	sign := ""
	if strings.HasPrefix(fixed, "-") {
		sign, fixed = "-", fixed[1:]
	}
	intPart, frac, _ := strings.Cut(fixed, ".")
	whole, err := decimal.NewFromString(intPart)
	if err != nil {
		return sign + fixed
	}
	grouped := r.printer.Sprintf("%d", whole.IntPart())
	if frac == "" {
		return sign + grouped
	}
	return sign + grouped + "." + frac
}

func formatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04 UTC")
}
