package payment

import (
	"context"
	"errors"
	"time"

	"github.com/cryptonexus/backend/internal/domain/payment"
	"github.com/cryptonexus/backend/internal/domain/shared"
	"github.com/cryptonexus/backend/internal/domain/trade"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AdminListEscrows pages through escrows, optionally by status
func (s *PaymentService) AdminListEscrows(ctx context.Context, actor shared.Actor, q EscrowListQuery) (*shared.Paginated[EscrowResponse], error) {
	if !actor.IsAdmin() {
		return nil, shared.NewDomainError("FORBIDDEN", "Admin access required")
	}
	filter := payment.EscrowFilter{Page: q.Page, PageSize: q.PageSize}
	if q.Status != "" {
		status := payment.EscrowStatus(q.Status)
		if !status.IsValid() {
			return nil, shared.NewDomainError("INVALID_INPUT", "Unknown escrow status: "+q.Status)
		}
		filter.Status = &status
	}
	escrows, total, err := s.escrowRepo.FindAll(ctx, filter)
	if err != nil {
		return nil, err
	}
	page := shared.NewPaginated(toEscrowResponses(escrows), total, max(q.Page, 1), filter.Limit())
	return &page, nil
}

// AdminGetEscrow returns one escrow
func (s *PaymentService) AdminGetEscrow(ctx context.Context, actor shared.Actor, id uuid.UUID) (*EscrowResponse, error) {
	if !actor.IsAdmin() {
		return nil, shared.NewDomainError("FORBIDDEN", "Admin access required")
	}
	escrow, err := s.escrowRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := ToEscrowResponse(escrow)
	return &resp, nil
}

// AdminEscrowAction releases or refunds an escrow on an administrator's ruling
func (s *PaymentService) AdminEscrowAction(ctx context.Context, actor shared.Actor, id uuid.UUID, req AdminEscrowActionRequest) (*EscrowResponse, error) {
	if !actor.IsAdmin() {
		return nil, shared.NewDomainError("FORBIDDEN", "Admin access required")
	}
	var escrow *payment.EscrowPayment
	err := s.txManager.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		if escrow, err = s.escrowRepo.FindByID(ctx, id); err != nil {
			return err
		}
		switch req.Action {
		case "release":
			err = escrow.Release(&actor.UserID, s.now())
		case "refund":
			err = escrow.Refund(&actor.UserID, s.now())
		default:
			err = shared.NewDomainError("INVALID_INPUT", "Invalid action")
		}
		if err != nil {
			return err
		}
		escrow.SetAdminNotes(req.AdminNotes)
		return s.escrowRepo.Save(ctx, escrow)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Escrow ruled by admin",
		zap.String("escrow_id", id.String()),
		zap.String("action", req.Action),
		zap.String("admin_id", actor.UserID.String()))
	resp := ToEscrowResponse(escrow)
	return &resp, nil
}

// Analytics returns payment and escrow totals
func (s *PaymentService) Analytics(ctx context.Context, actor shared.Actor) (*AnalyticsResponse, error) {
	if !actor.IsAdmin() {
		return nil, shared.NewDomainError("FORBIDDEN", "Admin access required")
	}
	counts, err := s.addressRepo.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	totals, err := s.escrowRepo.Totals(ctx)
	if err != nil {
		return nil, err
	}

	var resp AnalyticsResponse
	for status, n := range counts {
		resp.Payments.Total += n
		switch {
		case status.IsSettled():
			resp.Payments.Successful += n
		case status == payment.AddressStatusPending:
			resp.Payments.Pending += n
		case status == payment.AddressStatusExpired:
			resp.Payments.Expired += n
		}
	}
	if resp.Payments.Total > 0 {
		rate := float64(resp.Payments.Successful) / float64(resp.Payments.Total) * 100
		resp.Payments.SuccessRate = float64(int64(rate*100+0.5)) / 100
	}

	for status, n := range totals.CountByStatus {
		resp.Escrows.Total += n
		switch status {
		case payment.EscrowStatusFunded:
			resp.Escrows.Active = n
		case payment.EscrowStatusDisputed:
			resp.Escrows.Disputed = n
		case payment.EscrowStatusReleased:
			resp.Escrows.Released = n
		case payment.EscrowStatusRefunded:
			resp.Escrows.Refunded = n
		}
	}
	resp.Escrows.FundedVolume = totals.FundedVolume
	resp.Escrows.ReleasedVolume = totals.ReleasedVolume
	resp.Escrows.RefundedVolume = totals.RefundedVolume
	resp.Escrows.FeesEarned = totals.FeesEarned
	return &resp, nil
}

// AutoReleaseEscrows releases funded escrows whose auto release time has
// passed and returns how many were released. Each release locks the order
// first and only goes ahead while the order is paid, delivered or
// confirmed, so a dispute opened meanwhile keeps the funds frozen.
func (s *PaymentService) AutoReleaseEscrows(ctx context.Context, now time.Time) (int, error) {
	due, err := s.escrowRepo.FindDueForRelease(ctx, now, batchSize)
	if err != nil {
		return 0, err
	}
	released := 0
	for _, candidate := range due {
		if !candidate.IsDueForAutoRelease(now) {
			continue
		}
		var done bool
		err := s.txManager.WithinTransaction(ctx, func(ctx context.Context) error {
			var err error
			done, err = s.autoRelease(ctx, candidate, now)
			return err
		})
		if err != nil {
			s.logger.Error("Failed to auto-release escrow",
				zap.String("escrow_id", candidate.ID.String()),
				zap.String("order_id", candidate.OrderNumber),
				zap.Error(err))
			continue
		}
		if done {
			released++
			s.logger.Info("Auto-released escrow", zap.String("order_id", candidate.OrderNumber))
		}
	}
	return released, nil
}

func (s *PaymentService) autoRelease(ctx context.Context, candidate *payment.EscrowPayment, now time.Time) (bool, error) {
	order, err := s.orderRepo.FindByNumberForUpdate(ctx, candidate.OrderNumber)
	if err != nil {
		return false, err
	}
	switch order.Status {
	case trade.OrderStatusPaid, trade.OrderStatusDelivered, trade.OrderStatusConfirmed:
	default:
		s.logger.Warn("Escrow not auto-released, order is not settled",
			zap.String("order_id", order.OrderNumber),
			zap.String("order_status", string(order.Status)))
		return false, nil
	}

	escrow, err := s.escrowRepo.FindByID(ctx, candidate.ID)
	if err != nil {
		return false, err
	}
	if !escrow.IsDueForAutoRelease(now) {
		return false, nil
	}
	if err := escrow.Release(nil, now); err != nil {
		return false, err
	}
	return true, s.escrowRepo.Save(ctx, escrow)
}

// ReleaseForOrder pays the vendor once the buyer confirms. Orders without
// escrow and already released escrows are ignored.
func (s *PaymentService) ReleaseForOrder(ctx context.Context, orderID uuid.UUID) error {
	return s.updateOrderEscrow(ctx, orderID, func(e *payment.EscrowPayment) error {
		if e.Status == payment.EscrowStatusReleased {
			return nil
		}
		return e.Release(nil, s.now())
	})
}

// DisputeForOrder freezes the escrow of a disputed order. Funds that were
// already paid out are left to the administrator ruling on the dispute.
func (s *PaymentService) DisputeForOrder(ctx context.Context, orderID uuid.UUID, reason string) error {
	return s.updateOrderEscrow(ctx, orderID, func(e *payment.EscrowPayment) error {
		if e.Status == payment.EscrowStatusReleased || e.Status == payment.EscrowStatusRefunded {
			s.logger.Warn("Dispute opened on a settled escrow",
				zap.String("order_id", e.OrderNumber),
				zap.String("escrow_status", string(e.Status)))
			return nil
		}
		return e.Dispute(reason)
	})
}

// ResolveForOrder applies a dispute ruling: the buyer winning refunds, the
// vendor winning releases. A partial refund leaves the escrow for an admin.
func (s *PaymentService) ResolveForOrder(ctx context.Context, orderID uuid.UUID, resolution trade.DisputeResolution, by uuid.UUID) error {
	return s.updateOrderEscrow(ctx, orderID, func(e *payment.EscrowPayment) error {
		switch resolution {
		case trade.ResolutionBuyerWins:
			if e.Status == payment.EscrowStatusRefunded {
				return nil
			}
			return e.Refund(&by, s.now())
		case trade.ResolutionVendorWins:
			if e.Status == payment.EscrowStatusReleased {
				return nil
			}
			return e.Release(&by, s.now())
		}
		return nil
	})
}

func (s *PaymentService) updateOrderEscrow(ctx context.Context, orderID uuid.UUID, fn func(e *payment.EscrowPayment) error) error {
	return s.txManager.WithinTransaction(ctx, func(ctx context.Context) error {
		escrow, err := s.escrowRepo.FindByOrderID(ctx, orderID)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return nil
			}
			return err
		}
		if escrow.Status == payment.EscrowStatusPending || escrow.Status == payment.EscrowStatusCancelled {
			s.logger.Info("Escrow was never funded, nothing to settle",
				zap.String("order_id", escrow.OrderNumber))
			return nil
		}
		version := escrow.GetVersion()
		if err := fn(escrow); err != nil {
			return err
		}
		if escrow.GetVersion() == version {
			return nil
		}
		return s.escrowRepo.Save(ctx, escrow)
	})
}

// CloseForOrder shuts the payment side of an order that ended unpaid. An
// open address expires so later transfers no longer settle it, a pending
// escrow is cancelled and a funded one goes back to the buyer.
func (s *PaymentService) CloseForOrder(ctx context.Context, orderID uuid.UUID) error {
	return s.txManager.WithinTransaction(ctx, func(ctx context.Context) error {
		addr, err := s.addressRepo.FindByOrderID(ctx, orderID)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return nil
			}
			return err
		}
		if addr.Status.IsOpen() {
			if err := addr.Expire(); err != nil {
				return err
			}
			if err := s.addressRepo.Save(ctx, addr); err != nil {
				return err
			}
		}

		escrow, err := s.escrowFor(ctx, addr)
		if err != nil || escrow == nil {
			return err
		}
		switch escrow.Status {
		case payment.EscrowStatusPending:
			err = escrow.Cancel()
		case payment.EscrowStatusFunded:
			s.logger.Warn("Refunding escrow of a closed order",
				zap.String("order_id", escrow.OrderNumber))
			err = escrow.Refund(nil, s.now())
		default:
			return nil
		}
		if err != nil {
			return err
		}
		return s.escrowRepo.Save(ctx, escrow)
	})
}
