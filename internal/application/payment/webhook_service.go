package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cryptonexus/backend/internal/domain/payment"
	"github.com/cryptonexus/backend/internal/domain/shared"
	"github.com/cryptonexus/backend/internal/infrastructure/telemetry"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	webhookApplied = "success"
	webhookIgnored = "ignored"
)

// HandleBTCPayWebhook verifies and applies a BTCPay notification. Retries
// of an already recorded notification are acknowledged without effect.
func (s *PaymentService) HandleBTCPayWebhook(ctx context.Context, raw []byte, signature string) (*WebhookResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment", "btcpay_webhook",
		telemetry.WithAttribute(telemetry.SpanAttrPaymentGateway, "btcpay"))
	defer span.End()

	if s.bitcoin == nil {
		return nil, shared.NewDomainError("PAYMENT_GATEWAY_ERROR", "BTCPay is not configured")
	}
	if strings.TrimSpace(signature) == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "Missing signature")
	}
	event, err := s.bitcoin.VerifyWebhook(raw, signature)
	if err != nil {
		telemetry.RecordError(span, err)
		if errors.Is(err, payment.ErrInvalidWebhookSig) {
			s.logger.Warn("Invalid BTCPay webhook signature")
			return nil, shared.NewDomainError("INVALID_SIGNATURE", "Invalid signature")
		}
		return nil, shared.NewDomainError("INVALID_INPUT", "Malformed webhook payload")
	}

	eventType := event.Type
	if eventType == "" {
		eventType = event.Status
	}
	webhook := payment.NewPaymentWebhook(payment.WebhookSourceBTCPay, event.InvoiceID, eventType, raw)

	return s.recordWebhook(ctx, webhook, func(ctx context.Context) (*payment.PaymentAddress, error) {
		addr, err := s.findInvoiceAddress(ctx, event)
		if err != nil || addr == nil {
			return nil, err
		}

		switch {
		case event.Settled():
			if addr.Status.IsSettled() {
				return addr, nil
			}
			accepts, err := s.orderAcceptsPayment(ctx, addr, event.TransactionHash)
			if err != nil || !accepts {
				return addr, err
			}
			changed, err := addr.MarkSettled(event.TransactionHash, s.now())
			if err != nil || !changed {
				return addr, err
			}
			return addr, s.settle(ctx, addr)
		case event.Expired():
			if !addr.Status.IsOpen() {
				return addr, nil
			}
			if err := addr.Expire(); err != nil {
				return nil, err
			}
			return addr, s.addressRepo.Save(ctx, addr)
		case event.Invalid():
			if addr.Status.IsSettled() {
				return addr, nil
			}
			if err := addr.Fail(); err != nil {
				return nil, err
			}
			return addr, s.addressRepo.Save(ctx, addr)
		}
		return addr, nil
	})
}

// findInvoiceAddress resolves the address by invoice id, falling back to
// the order number carried in the metadata. It returns nil for unknown
// invoices.
func (s *PaymentService) findInvoiceAddress(ctx context.Context, event *payment.WebhookEvent) (*payment.PaymentAddress, error) {
	if event.InvoiceID != "" {
		addr, err := s.addressRepo.FindByInvoiceID(ctx, event.InvoiceID)
		if err == nil {
			return addr, nil
		}
		if !errors.Is(err, shared.ErrNotFound) {
			return nil, err
		}
	}
	if event.OrderNumber == "" {
		return nil, nil
	}
	order, err := s.orderRepo.FindByNumber(ctx, event.OrderNumber)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	addr, err := s.addressRepo.FindByOrderID(ctx, order.ID)
	if errors.Is(err, shared.ErrNotFound) {
		return nil, nil
	}
	return addr, err
}

// HandleMoneroWebhook applies a transfer notification for a subaddress.
// The caller is not trusted: the transaction must be known to the wallet,
// and the amount and depth applied are those the wallet reports for the
// subaddress. Partial and overpaid amounts are recorded; the payment
// settles once the amount and the confirmation depth are reached.
func (s *PaymentService) HandleMoneroWebhook(ctx context.Context, raw []byte, n MoneroNotification) (*WebhookResult, error) {
	txHash := strings.TrimSpace(n.TxHash)
	ctx, span := telemetry.StartServiceSpan(ctx, "payment", "monero_webhook",
		telemetry.WithAttribute(telemetry.SpanAttrPaymentGateway, "monero"),
		telemetry.WithAttribute(telemetry.SpanAttrTxHash, txHash))
	defer span.End()

	if s.monero == nil {
		return nil, shared.NewDomainError("PAYMENT_GATEWAY_ERROR", "Monero wallet is not configured")
	}
	if _, err := decimal.NewFromString(strings.TrimSpace(n.Amount)); err != nil {
		return nil, shared.NewDomainError("INVALID_INPUT", fmt.Sprintf("Invalid amount '%s'", n.Amount))
	}

	addr, err := s.addressRepo.FindByAddress(ctx, strings.TrimSpace(n.Address))
	if errors.Is(err, shared.ErrNotFound) {
		webhook := payment.NewPaymentWebhook(payment.WebhookSourceMonero, txHash,
			fmt.Sprintf("transfer:%d", n.Confirmations), raw)
		return s.recordWebhook(ctx, webhook, func(context.Context) (*payment.PaymentAddress, error) {
			return nil, nil
		})
	}
	if err != nil {
		return nil, err
	}
	if addr.MoneroSubaddressIndex == nil {
		return nil, shared.NewDomainError("INVALID_INPUT", "Address is not a wallet subaddress")
	}

	index := *addr.MoneroSubaddressIndex
	transfers, err := s.monero.IncomingTransfers(ctx, []uint32{index})
	if err != nil {
		telemetry.RecordError(span, err)
		s.logger.Error("Failed to verify monero transfer",
			zap.String("order_id", addr.OrderNumber), zap.Error(err))
		return nil, shared.NewDomainError("PAYMENT_GATEWAY_ERROR", "Failed to verify transfer with the wallet")
	}
	if !containsTransfer(transfers, index, txHash) {
		s.logger.Warn("Monero notification for a transfer the wallet does not know",
			zap.String("order_id", addr.OrderNumber),
			zap.String("tx_hash", txHash),
			zap.String("claimed_amount", n.Amount))
		return nil, shared.NewDomainError("INVALID_INPUT", "Transfer is not known to the wallet")
	}
	observed := aggregateTransfers(transfers)[index]

	webhook := payment.NewPaymentWebhook(payment.WebhookSourceMonero, txHash,
		fmt.Sprintf("transfer:%d", observed.Confirmations), raw)
	return s.recordWebhook(ctx, webhook, func(ctx context.Context) (*payment.PaymentAddress, error) {
		current, err := s.addressRepo.FindByID(ctx, addr.ID)
		if err != nil {
			return nil, err
		}
		return current, s.applyTransfer(ctx, current, observed.Amount, observed.Confirmations, observed.TxHash)
	})
}

// recordWebhook runs apply and stores the webhook in one transaction, so a
// failed apply leaves no record and the gateway's retry is processed
func (s *PaymentService) recordWebhook(ctx context.Context, webhook *payment.PaymentWebhook, apply func(ctx context.Context) (*payment.PaymentAddress, error)) (*WebhookResult, error) {
	result := &WebhookResult{Status: webhookApplied}
	err := s.txManager.WithinTransaction(ctx, func(ctx context.Context) error {
		seen, err := s.webhookRepo.Exists(ctx, webhook.Source, webhook.ExternalID, webhook.EventType)
		if err != nil {
			return err
		}
		if seen {
			result.Duplicate = true
			return nil
		}

		addr, err := apply(ctx)
		if err != nil {
			return err
		}
		if addr == nil {
			s.logger.Warn("Webhook does not match any payment",
				zap.String("source", string(webhook.Source)),
				zap.String("external_id", webhook.ExternalID))
			result.Status = webhookIgnored
		} else {
			webhook.MarkProcessed(&addr.ID)
		}
		return s.webhookRepo.Save(ctx, webhook)
	})
	if err != nil {
		s.logger.Error("Failed to process payment webhook",
			zap.String("source", string(webhook.Source)),
			zap.String("external_id", webhook.ExternalID),
			zap.Error(err))
		return nil, err
	}
	if result.Duplicate {
		s.logger.Info("Webhook already processed",
			zap.String("dedup_key", webhook.DedupKey()))
	}
	return result, nil
}

// applyTransfer records the cumulative amount observed on an address.
// Closed addresses are left alone. Call inside a transaction.
func (s *PaymentService) applyTransfer(ctx context.Context, addr *payment.PaymentAddress, amount decimal.Decimal, confirmations int, txHash string) error {
	if !addr.Status.IsOpen() {
		if !addr.Status.IsSettled() {
			s.logger.Warn("Transfer to a closed payment address",
				zap.String("order_id", addr.OrderNumber),
				zap.String("status", string(addr.Status)),
				zap.String("tx_hash", txHash))
		}
		return nil
	}
	accepts, err := s.orderAcceptsPayment(ctx, addr, txHash)
	if err != nil || !accepts {
		return err
	}
	settled, err := addr.RecordTransfer(amount, confirmations, txHash, s.now())
	if err != nil {
		return err
	}
	if settled {
		s.logger.Info("Payment settled",
			zap.String("order_id", addr.OrderNumber),
			zap.String("received", addr.ReceivedAmount.String()),
			zap.String("status", string(addr.Status)))
		return s.settle(ctx, addr)
	}
	return s.addressRepo.Save(ctx, addr)
}

// orderAcceptsPayment locks the order behind addr and reports whether a
// payment may still be applied to it. Money arriving for an order that was
// cancelled or expired closes the address instead; refunding it is left to
// an administrator.
func (s *PaymentService) orderAcceptsPayment(ctx context.Context, addr *payment.PaymentAddress, txHash string) (bool, error) {
	order, err := s.orderRepo.FindByNumberForUpdate(ctx, addr.OrderNumber)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return false, err
	}
	if err == nil && order.Status.AcceptsPayment() {
		return true, nil
	}

	status := "missing"
	if order != nil {
		status = string(order.Status)
	}
	s.logger.Warn("Payment received for a closed order",
		zap.String("order_id", addr.OrderNumber),
		zap.String("order_status", status),
		zap.String("tx_hash", txHash))
	if !addr.Status.IsOpen() {
		return false, nil
	}
	if err := addr.Expire(); err != nil {
		return false, err
	}
	return false, s.addressRepo.Save(ctx, addr)
}

// CheckMoneroTransfers polls the wallet for transfers to open XMR
// subaddresses and applies them. It returns the number of payments settled.
func (s *PaymentService) CheckMoneroTransfers(ctx context.Context) (int, error) {
	if s.monero == nil {
		return 0, nil
	}
	ctx, span := telemetry.StartServiceSpan(ctx, "payment", "check_monero_transfers")
	defer span.End()

	open, err := s.addressRepo.FindOpenByCurrency(ctx, shared.CurrencyXMR, batchSize)
	if err != nil {
		telemetry.RecordError(span, err)
		return 0, err
	}

	byIndex := make(map[uint32]*payment.PaymentAddress, len(open))
	indices := make([]uint32, 0, len(open))
	for _, addr := range open {
		if addr.MoneroSubaddressIndex == nil {
			continue
		}
		byIndex[*addr.MoneroSubaddressIndex] = addr
		indices = append(indices, *addr.MoneroSubaddressIndex)
	}
	if len(indices) == 0 {
		return 0, nil
	}

	transfers, err := s.monero.IncomingTransfers(ctx, indices)
	if err != nil {
		telemetry.RecordError(span, err)
		return 0, fmt.Errorf("failed to fetch monero transfers: %w", err)
	}

	seen := aggregateTransfers(transfers)
	settled := 0
	for index, t := range seen {
		addr, ok := byIndex[index]
		if !ok || t.Amount.Equal(addr.ReceivedAmount) && t.Confirmations == addr.Confirmations {
			continue
		}
		var current *payment.PaymentAddress
		err := s.txManager.WithinTransaction(ctx, func(ctx context.Context) error {
			var err error
			if current, err = s.addressRepo.FindByID(ctx, addr.ID); err != nil {
				return err
			}
			return s.applyTransfer(ctx, current, t.Amount, t.Confirmations, t.TxHash)
		})
		if err != nil {
			s.logger.Error("Failed to apply monero transfer",
				zap.String("order_id", addr.OrderNumber), zap.Error(err))
			continue
		}
		if current.Status.IsSettled() {
			settled++
			telemetry.AddEvent(span, "payment_settled",
				telemetry.SpanAttrOrderNumber, addr.OrderNumber,
				telemetry.SpanAttrTxHash, t.TxHash,
			)
		}
	}
	telemetry.SetAttributes(span, telemetry.SpanAttrSettledCount, settled)
	return settled, nil
}

func containsTransfer(transfers []payment.Transfer, index uint32, txHash string) bool {
	for _, t := range transfers {
		if t.SubaddressIndex == index && t.TxHash == txHash {
			return true
		}
	}
	return false
}

// aggregateTransfers sums the distinct transfers of each subaddress; a
// transaction listed twice by the wallet counts once. The confirmation
// depth of a subaddress is that of its youngest transfer.
func aggregateTransfers(transfers []payment.Transfer) map[uint32]payment.Transfer {
	type key struct {
		index  uint32
		txHash string
	}
	seen := make(map[key]bool, len(transfers))
	out := make(map[uint32]payment.Transfer)
	for _, t := range transfers {
		k := key{t.SubaddressIndex, t.TxHash}
		if seen[k] {
			continue
		}
		seen[k] = true

		agg, ok := out[t.SubaddressIndex]
		if !ok {
			out[t.SubaddressIndex] = t
			continue
		}
		agg.Amount = agg.Amount.Add(t.Amount)
		if t.Confirmations < agg.Confirmations {
			agg.Confirmations = t.Confirmations
			agg.TxHash = t.TxHash
		}
		out[t.SubaddressIndex] = agg
	}
	return out
}
