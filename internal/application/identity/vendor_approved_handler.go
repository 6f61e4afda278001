package identity

import (
	"context"
	"fmt"

	"github.com/cryptonexus/backend/internal/domain/shared"
	"github.com/cryptonexus/backend/internal/domain/vendor"
	"go.uber.org/zap"
)

// VendorApprovedHandler promotes the applicant once a vendor application is approved
type VendorApprovedHandler struct {
	users  *UserService
	logger *zap.Logger
}

// NewVendorApprovedHandler creates a new VendorApprovedHandler
func NewVendorApprovedHandler(users *UserService, logger *zap.Logger) *VendorApprovedHandler {
	return &VendorApprovedHandler{users: users, logger: logger}
}

// EventTypes returns the event types this handler is interested in
func (h *VendorApprovedHandler) EventTypes() []string {
	return []string{vendor.EventTypeVendorApplicationApproved}
}

// Handle processes a VendorApplicationApprovedEvent
func (h *VendorApprovedHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	approved, ok := event.(*vendor.VendorApplicationApprovedEvent)
	if !ok {
		return fmt.Errorf("unexpected event type: expected %s, got %s",
			vendor.EventTypeVendorApplicationApproved, event.EventType())
	}

	h.logger.Info("promoting approved vendor",
		zap.String("application_id", approved.ApplicationID.String()),
		zap.String("user_id", approved.UserID.String()),
	)
	return h.users.PromoteToVendor(ctx, approved.UserID)
}

var _ shared.EventHandler = (*VendorApprovedHandler)(nil)
