package payment

import (
	"time"

	"github.com/google/uuid"
)

// WebhookSource names the sender of a webhook
type WebhookSource string

const (
	WebhookSourceBTCPay WebhookSource = "btcpay"
	WebhookSourceMonero WebhookSource = "monero"
)

// PaymentWebhook is the stored copy of an inbound notification
type PaymentWebhook struct {
	ID               uuid.UUID
	PaymentAddressID *uuid.UUID
	Source           WebhookSource
	ExternalID       string
	EventType        string
	RawData          []byte
	Processed        bool
	CreatedAt        time.Time
}

// NewPaymentWebhook records a received webhook
func NewPaymentWebhook(source WebhookSource, externalID, eventType string, raw []byte) *PaymentWebhook {
	return &PaymentWebhook{
		ID:         uuid.New(),
		Source:     source,
		ExternalID: externalID,
		EventType:  eventType,
		RawData:    raw,
		CreatedAt:  time.Now(),
	}
}

// DedupKey identifies retries of the same notification
func (w *PaymentWebhook) DedupKey() string {
	return string(w.Source) + ":" + w.ExternalID + ":" + w.EventType
}

// MarkProcessed links the webhook to the address it was applied to
func (w *PaymentWebhook) MarkProcessed(addressID *uuid.UUID) {
	w.PaymentAddressID = addressID
	w.Processed = true
}
