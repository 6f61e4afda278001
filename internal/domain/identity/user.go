package identity

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/cryptonexus/backend/internal/domain/shared"
	"golang.org/x/crypto/bcrypt"
)

// UserType is the marketplace role of an account
type UserType string

const (
	UserTypeBuyer  UserType = "buyer"
	UserTypeVendor UserType = "vendor"
	UserTypeAdmin  UserType = "admin"
)

func (t UserType) IsValid() bool {
	return t == UserTypeBuyer || t == UserTypeVendor || t == UserTypeAdmin
}

const (
	// MaxFailedAttempts locks the account once reached
	MaxFailedAttempts = 5
	// LockDuration is how long a locked account stays locked
	LockDuration = 15 * time.Minute

	bcryptCost = 12

	usernameMin, usernameMax = 3, 150
	// bcrypt ignores everything past 72 bytes
	passwordMin, passwordMax = 8, 72
	emailMax                 = 254
)

var (
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_.@+-]+$`)
	emailPattern    = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
)

// User is a marketplace account. Buyers may be promoted to vendors; admin
// rights come from the admin type or the staff flag.
type User struct {
	shared.BaseAggregateRoot
	Username          string
	Email             string
	PasswordHash      string
	UserType          UserType
	IsVerified        bool
	TwoFactorEnabled  bool
	EscrowEnabled     bool
	IsActive          bool
	IsStaff           bool
	IsDeleted         bool
	LastLoginAt       *time.Time
	FailedAttempts    int
	LockedUntil       *time.Time
	PasswordChangedAt *time.Time
}

// NewUser creates an active account with escrow enabled. An empty type
// means buyer. Self sign-up must pass ValidateSelfRegistration first.
func NewUser(username, email, password string, userType UserType) (*User, error) {
	username = strings.TrimSpace(username)
	if err := checkUsername(username); err != nil {
		return nil, err
	}
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if userType == "" {
		userType = UserTypeBuyer
	}
	if !userType.IsValid() {
		return nil, shared.NewDomainError("INVALID_USER_TYPE", "Invalid user type")
	}

	u := &User{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Username:          username,
		Email:             email,
		UserType:          userType,
		EscrowEnabled:     true,
		IsActive:          true,
	}
	if err := u.storePassword(password, time.Now()); err != nil {
		return nil, err
	}
	return u, nil
}

// ValidateSelfRegistration rejects user types that cannot be chosen at sign-up
func ValidateSelfRegistration(userType UserType) error {
	switch {
	case userType == UserTypeAdmin:
		return shared.NewDomainError("INVALID_USER_TYPE", "Admin accounts cannot be self-registered")
	case userType != "" && !userType.IsValid():
		return shared.NewDomainError("INVALID_USER_TYPE", "Invalid user type")
	}
	return nil
}

func (u *User) IsAdmin() bool {
	return u.IsStaff || u.UserType == UserTypeAdmin
}

func (u *User) IsVendor() bool {
	return u.UserType == UserTypeVendor
}

// SetEmail changes the email address. Uniqueness is the service's concern.
func (u *User) SetEmail(email string) error {
	normalized, err := normalizeEmail(email)
	if err != nil {
		return err
	}
	u.Email = normalized
	u.touch()
	return nil
}

// ChangePassword verifies the old password and stores the new one
func (u *User) ChangePassword(oldPassword, newPassword string) error {
	if !u.VerifyPassword(oldPassword) {
		return shared.NewDomainError("INVALID_PASSWORD", "Current password is incorrect")
	}
	return u.SetPassword(newPassword)
}

// SetPassword replaces the password without checking the old one
func (u *User) SetPassword(newPassword string) error {
	if err := u.storePassword(newPassword, time.Now()); err != nil {
		return err
	}
	u.touch()
	return nil
}

func (u *User) VerifyPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}

func (u *User) storePassword(password string, now time.Time) error {
	if err := checkPassword(password); err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return shared.NewDomainError("PASSWORD_HASH_ERROR", "Failed to hash password")
	}
	u.PasswordHash = string(hash)
	u.PasswordChangedAt = &now
	return nil
}

// PromoteToVendor turns a buyer into a vendor and reports whether anything
// changed. Vendors and admins keep their type.
func (u *User) PromoteToVendor() bool {
	if u.UserType != UserTypeBuyer {
		return false
	}
	u.UserType = UserTypeVendor
	u.touch()
	return true
}

// CanLogin explains why the account may not sign in at now, or returns nil
func (u *User) CanLogin(now time.Time) error {
	switch {
	case u.IsDeleted || !u.IsActive:
		return shared.NewDomainError("ACCOUNT_DISABLED", "User account is disabled")
	case u.IsLocked(now):
		return shared.NewDomainError("ACCOUNT_LOCKED", "Account is temporarily locked due to too many failed login attempts")
	}
	return nil
}

func (u *User) IsLocked(now time.Time) bool {
	return u.LockedUntil != nil && now.Before(*u.LockedUntil)
}

// RecordLoginSuccess clears failures and any lock
func (u *User) RecordLoginSuccess(now time.Time) {
	u.LastLoginAt = &now
	u.FailedAttempts = 0
	u.LockedUntil = nil
	u.touch()
}

// RecordLoginFailure counts a failed attempt. The MaxFailedAttempts-th
// failure locks the account for LockDuration, restarts the count and
// returns true.
func (u *User) RecordLoginFailure(now time.Time) bool {
	u.touch()
	if u.FailedAttempts++; u.FailedAttempts < MaxFailedAttempts {
		return false
	}
	until := now.Add(LockDuration)
	u.LockedUntil = &until
	u.FailedAttempts = 0
	return true
}

func (u *User) touch() {
	u.UpdatedAt = time.Now()
	u.IncrementVersion()
}

func checkUsername(username string) error {
	invalid := func(msg string) error { return shared.NewDomainError("INVALID_USERNAME", msg) }
	switch n := len(username); {
	case n == 0:
		return invalid("Username cannot be empty")
	case n < usernameMin:
		return invalid(fmt.Sprintf("Username must be at least %d characters", usernameMin))
	case n > usernameMax:
		return invalid(fmt.Sprintf("Username cannot exceed %d characters", usernameMax))
	case !usernamePattern.MatchString(username):
		return invalid("Username may only contain letters, digits and @/./+/-/_")
	}
	return nil
}

// normalizeEmail lowercases a trimmed address. The empty address is allowed.
func normalizeEmail(email string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", nil
	}
	if len(email) > emailMax || !emailPattern.MatchString(email) {
		return "", shared.NewDomainError("INVALID_EMAIL", "Invalid email format")
	}
	return strings.ToLower(email), nil
}

func checkPassword(password string) error {
	invalid := func(msg string) error { return shared.NewDomainError("INVALID_PASSWORD", msg) }
	switch n := len(password); {
	case n == 0:
		return invalid("Password cannot be empty")
	case n < passwordMin:
		return invalid(fmt.Sprintf("Password must be at least %d characters", passwordMin))
	case n > passwordMax:
		return invalid(fmt.Sprintf("Password cannot exceed %d characters", passwordMax))
	}
	return nil
}
