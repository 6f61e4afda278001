package models

import (
	"time"

	"github.com/cryptonexus/backend/internal/domain/identity"
)

// UserModel is the persistence model for the User domain entity.
type UserModel struct {
	AggregateModel
	Username          string            `gorm:"type:varchar(150);not null;uniqueIndex"`
	Email             *string           `gorm:"type:varchar(254);uniqueIndex"`
	PasswordHash      string            `gorm:"type:varchar(255);not null"`
	UserType          identity.UserType `gorm:"type:varchar(20);not null;default:'buyer';index"`
	IsVerified        bool              `gorm:"not null;default:false"`
	TwoFactorEnabled  bool              `gorm:"not null;default:false"`
	EscrowEnabled     bool              `gorm:"not null;default:true"`
	IsActive          bool              `gorm:"not null;default:true"`
	IsStaff           bool              `gorm:"not null;default:false"`
	IsDeleted         bool              `gorm:"not null;default:false"`
	LastLoginAt       *time.Time
	FailedAttempts    int `gorm:"not null;default:0"`
	LockedUntil       *time.Time
	PasswordChangedAt *time.Time
}

// TableName returns the table name for GORM
func (UserModel) TableName() string {
	return "users"
}

// ToDomain converts the persistence model to a domain User entity.
func (m *UserModel) ToDomain() *identity.User {
	u := &identity.User{
		BaseAggregateRoot: m.ToAggregateRoot(),
		Username:          m.Username,
		PasswordHash:      m.PasswordHash,
		UserType:          m.UserType,
		IsVerified:        m.IsVerified,
		TwoFactorEnabled:  m.TwoFactorEnabled,
		EscrowEnabled:     m.EscrowEnabled,
		IsActive:          m.IsActive,
		IsStaff:           m.IsStaff,
		IsDeleted:         m.IsDeleted,
		LastLoginAt:       m.LastLoginAt,
		FailedAttempts:    m.FailedAttempts,
		LockedUntil:       m.LockedUntil,
		PasswordChangedAt: m.PasswordChangedAt,
	}
	if m.Email != nil {
		u.Email = *m.Email
	}
	return u
}

// FromDomain populates the persistence model from a domain User entity.
// An empty email is stored as NULL so the unique index ignores it.
func (m *UserModel) FromDomain(u *identity.User) {
	m.FromDomainAggregateRoot(u.BaseAggregateRoot)
	m.Username = u.Username
	m.Email = nil
	if u.Email != "" {
		email := u.Email
		m.Email = &email
	}
	m.PasswordHash = u.PasswordHash
	m.UserType = u.UserType
	m.IsVerified = u.IsVerified
	m.TwoFactorEnabled = u.TwoFactorEnabled
	m.EscrowEnabled = u.EscrowEnabled
	m.IsActive = u.IsActive
	m.IsStaff = u.IsStaff
	m.IsDeleted = u.IsDeleted
	m.LastLoginAt = u.LastLoginAt
	m.FailedAttempts = u.FailedAttempts
	m.LockedUntil = u.LockedUntil
	m.PasswordChangedAt = u.PasswordChangedAt
}

// UserModelFromDomain creates a new persistence model from a domain User entity.
func UserModelFromDomain(u *identity.User) *UserModel {
	m := &UserModel{}
	m.FromDomain(u)
	return m
}
