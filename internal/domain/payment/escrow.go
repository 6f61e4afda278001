package payment

import (
	"fmt"
	"strings"
	"time"

	"github.com/cryptonexus/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EscrowStatus is the state of funds held for an order
type EscrowStatus string

const (
	EscrowStatusPending   EscrowStatus = "pending"
	EscrowStatusFunded    EscrowStatus = "funded"
	EscrowStatusReleased  EscrowStatus = "released"
	EscrowStatusRefunded  EscrowStatus = "refunded"
	EscrowStatusDisputed  EscrowStatus = "disputed"
	EscrowStatusCancelled EscrowStatus = "cancelled"
)

// IsValid reports whether s is a known status
func (s EscrowStatus) IsValid() bool {
	switch s {
	case EscrowStatusPending, EscrowStatusFunded, EscrowStatusReleased, EscrowStatusRefunded,
		EscrowStatusDisputed, EscrowStatusCancelled:
		return true
	}
	return false
}

// Escrow defaults
const (
	DefaultEscrowFeePercent = 2
	DefaultAutoReleaseDays  = 7
)

// EscrowPayment holds a buyer's funds until the order is settled
type EscrowPayment struct {
	shared.BaseAggregateRoot
	PaymentAddressID   uuid.UUID
	OrderID            uuid.UUID
	OrderNumber        string
	BuyerID            uuid.UUID
	VendorID           uuid.UUID
	Amount             decimal.Decimal
	Fee                decimal.Decimal
	Status             EscrowStatus
	AutoReleaseEnabled bool
	AutoReleaseAt      *time.Time
	FundedAt           *time.Time
	ReleasedAt         *time.Time
	ReleasedBy         *uuid.UUID
	DisputeReason      string
	AdminNotes         string
}

// NewEscrowPayment opens an escrow for address with fee = amount * feePercent / 100
func NewEscrowPayment(address *PaymentAddress, feePercent decimal.Decimal) *EscrowPayment {
	fee := address.ExpectedAmount.Mul(feePercent).Div(decimal.NewFromInt(100)).Round(8)
	return &EscrowPayment{
		BaseAggregateRoot:  shared.NewBaseAggregateRoot(),
		PaymentAddressID:   address.ID,
		OrderID:            address.OrderID,
		OrderNumber:        address.OrderNumber,
		BuyerID:            address.BuyerID,
		VendorID:           address.VendorID,
		Amount:             address.ExpectedAmount,
		Fee:                fee,
		Status:             EscrowStatusPending,
		AutoReleaseEnabled: true,
	}
}

// VendorPayout is what the vendor receives on release
func (e *EscrowPayment) VendorPayout() decimal.Decimal {
	return e.Amount.Sub(e.Fee)
}

// Fund marks the escrow as holding funds and schedules the auto release
func (e *EscrowPayment) Fund(now time.Time, autoReleaseAfter time.Duration) error {
	if e.Status == EscrowStatusFunded {
		return nil
	}
	if e.Status != EscrowStatusPending {
		return e.invalid("fund")
	}
	e.Status = EscrowStatusFunded
	e.FundedAt = &now
	if e.AutoReleaseEnabled {
		at := now.Add(autoReleaseAfter)
		e.AutoReleaseAt = &at
	}
	e.touch()
	return nil
}

// Release pays the vendor. by is nil for automatic releases.
func (e *EscrowPayment) Release(by *uuid.UUID, now time.Time) error {
	if e.Status != EscrowStatusFunded && e.Status != EscrowStatusDisputed {
		return shared.NewDomainError("INVALID_STATE", "Escrow can only be released when funded")
	}
	e.Status = EscrowStatusReleased
	e.ReleasedAt = &now
	e.ReleasedBy = by
	e.touch()
	return nil
}

// Refund returns the funds to the buyer
func (e *EscrowPayment) Refund(by *uuid.UUID, now time.Time) error {
	if e.Status != EscrowStatusFunded && e.Status != EscrowStatusDisputed {
		return e.invalid("refund")
	}
	e.Status = EscrowStatusRefunded
	e.ReleasedAt = &now
	e.ReleasedBy = by
	e.touch()
	return nil
}

// Cancel closes an escrow that was never funded because its order ended
// unpaid
func (e *EscrowPayment) Cancel() error {
	if e.Status == EscrowStatusCancelled {
		return nil
	}
	if e.Status != EscrowStatusPending {
		return e.invalid("cancel")
	}
	e.Status = EscrowStatusCancelled
	e.touch()
	return nil
}

// Dispute freezes a funded escrow until an admin rules
func (e *EscrowPayment) Dispute(reason string) error {
	if strings.TrimSpace(reason) == "" {
		return shared.NewDomainError("INVALID_INPUT", "Dispute reason is required")
	}
	if e.Status == EscrowStatusDisputed {
		return nil
	}
	if e.Status != EscrowStatusFunded {
		return e.invalid("dispute")
	}
	e.Status = EscrowStatusDisputed
	e.DisputeReason = strings.TrimSpace(reason)
	e.touch()
	return nil
}

// SetAdminNotes records the admin's comment on an action
func (e *EscrowPayment) SetAdminNotes(notes string) {
	if notes != "" {
		e.AdminNotes = notes
	}
}

// IsDueForAutoRelease is true for funded escrows past auto_release_at
func (e *EscrowPayment) IsDueForAutoRelease(now time.Time) bool {
	return e.Status == EscrowStatusFunded && e.AutoReleaseEnabled &&
		e.AutoReleaseAt != nil && !now.Before(*e.AutoReleaseAt)
}

func (e *EscrowPayment) invalid(action string) error {
	return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot %s escrow in %s status", action, e.Status))
}

func (e *EscrowPayment) touch() {
	e.UpdatedAt = time.Now()
	e.IncrementVersion()
}
