package identity

import (
	"context"
	"strings"

	"github.com/cryptonexus/backend/internal/domain/identity"
	"github.com/cryptonexus/backend/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// UserService handles profile and user management operations
type UserService struct {
	userRepo identity.UserRepository
	logger   *zap.Logger
}

// NewUserService creates a new user service
func NewUserService(userRepo identity.UserRepository, logger *zap.Logger) *UserService {
	return &UserService{
		userRepo: userRepo,
		logger:   logger,
	}
}

// GetProfile returns the caller's own user record
func (s *UserService) GetProfile(ctx context.Context, userID uuid.UUID) (*UserResponse, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	resp := ToUserResponse(user)
	return &resp, nil
}

// UpdateProfile changes the caller's editable fields. Email stays unique.
func (s *UserService) UpdateProfile(ctx context.Context, userID uuid.UUID, req UpdateProfileRequest) (*UserResponse, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if req.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*req.Email))
		if email != user.Email {
			exists, err := s.userRepo.ExistsByEmail(ctx, email)
			if err != nil {
				return nil, err
			}
			if exists {
				return nil, shared.NewDomainError("ALREADY_EXISTS", "Email already exists")
			}
			if err := user.SetEmail(email); err != nil {
				return nil, err
			}
		}
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}
	resp := ToUserResponse(user)
	return &resp, nil
}

// ListUsers returns a page of users. Admin only.
func (s *UserService) ListUsers(ctx context.Context, actor shared.Actor, req ListUsersRequest) (*shared.Paginated[UserResponse], error) {
	if !actor.IsAdmin() {
		return nil, shared.ErrForbidden
	}

	filter := identity.UserFilter{
		Search:   req.Search,
		Page:     req.Page,
		PageSize: req.PageSize,
	}
	if req.UserType != "" {
		t := identity.UserType(req.UserType)
		filter.UserType = &t
	}

	users, total, err := s.userRepo.FindAll(ctx, filter)
	if err != nil {
		return nil, err
	}
	items := make([]UserResponse, len(users))
	for i, u := range users {
		items[i] = ToUserResponse(u)
	}
	page := shared.NewPaginated(items, total, max(req.Page, 1), filter.Limit())
	return &page, nil
}

// PromoteToVendor switches a buyer account to vendor after an approved
// application. Repeated calls are no-ops.
func (s *UserService) PromoteToVendor(ctx context.Context, userID uuid.UUID) error {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if !user.PromoteToVendor() {
		s.logger.Debug("User already has a selling account type",
			zap.String("user_id", userID.String()),
			zap.String("user_type", string(user.UserType)))
		return nil
	}
	if err := s.userRepo.Update(ctx, user); err != nil {
		return err
	}
	s.logger.Info("User promoted to vendor", zap.String("user_id", userID.String()))
	return nil
}
