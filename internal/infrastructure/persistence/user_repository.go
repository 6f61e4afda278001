package persistence

import (
	"context"
	"strings"

	"github.com/cryptonexus/backend/internal/domain/identity"
	"github.com/cryptonexus/backend/internal/domain/shared"
	"github.com/cryptonexus/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormUserRepository stores marketplace accounts. Usernames and emails are
// matched case-insensitively; soft-deleted accounts are invisible to lookups
// but still reserve their username and email.
type GormUserRepository struct {
	db *gorm.DB
}

func NewGormUserRepository(db *gorm.DB) *GormUserRepository {
	return &GormUserRepository{db: db}
}

func (r *GormUserRepository) Create(ctx context.Context, user *identity.User) error {
	err := Conn(ctx, r.db).Create(models.UserModelFromDomain(user)).Error
	if isUniqueViolation(err) {
		return shared.NewDomainError("ALREADY_EXISTS", "A user with this username or email already exists")
	}
	return err
}

// Update overwrites every column of an existing account
func (r *GormUserRepository) Update(ctx context.Context, user *identity.User) error {
	res := Conn(ctx, r.db).Save(models.UserModelFromDomain(user))
	switch {
	case isUniqueViolation(res.Error):
		return shared.NewDomainError("ALREADY_EXISTS", "A user with this email already exists")
	case res.Error != nil:
		return res.Error
	case res.RowsAffected == 0:
		return shared.ErrNotFound
	}
	return nil
}

func (r *GormUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*identity.User, error) {
	return r.findActive(ctx, "id = ?", id)
}

func (r *GormUserRepository) FindByUsername(ctx context.Context, username string) (*identity.User, error) {
	return r.findActive(ctx, "LOWER(username) = ?", strings.ToLower(username))
}

func (r *GormUserRepository) findActive(ctx context.Context, cond string, arg any) (*identity.User, error) {
	var row models.UserModel
	err := Conn(ctx, r.db).Where(cond, arg).Where("is_deleted = ?", false).Take(&row).Error
	if err != nil {
		return nil, notFound(err)
	}
	return row.ToDomain(), nil
}

func (r *GormUserRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	return r.taken(ctx, "username", username)
}

// ExistsByEmail reports false for an empty email, which many accounts share
func (r *GormUserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	if email == "" {
		return false, nil
	}
	return r.taken(ctx, "email", email)
}

// taken checks deleted accounts too
func (r *GormUserRepository) taken(ctx context.Context, column, value string) (bool, error) {
	var n int64
	err := Conn(ctx, r.db).Model(&models.UserModel{}).
		Where("LOWER("+column+") = ?", strings.ToLower(value)).
		Limit(1).
		Count(&n).Error
	return n > 0, err
}

// FindAll pages through live accounts, newest first. Search matches a
// substring of the username or email.
func (r *GormUserRepository) FindAll(ctx context.Context, filter identity.UserFilter) ([]*identity.User, int64, error) {
	q := Conn(ctx, r.db).Model(&models.UserModel{}).Where("is_deleted = ?", false)
	if term := strings.ToLower(strings.TrimSpace(filter.Search)); term != "" {
		like := "%" + term + "%"
		q = q.Where("LOWER(username) LIKE ? OR LOWER(email) LIKE ?", like, like)
	}
	if filter.UserType != nil {
		q = q.Where("user_type = ?", *filter.UserType)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []*identity.User{}, 0, nil
	}

	var rows []models.UserModel
	err := q.Order("created_at DESC").Offset(filter.Offset()).Limit(filter.Limit()).Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	users := make([]*identity.User, 0, len(rows))
	for i := range rows {
		users = append(users, rows[i].ToDomain())
	}
	return users, total, nil
}

var _ identity.UserRepository = (*GormUserRepository)(nil)
