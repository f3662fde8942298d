package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/halqat/internal/listquery"
	"github.com/noah-isme/halqat/internal/models"
)

// UserRepository persists accounts.
type UserRepository interface {
	List(ctx context.Context, q listquery.Query) ([]models.User, int64, error)
	GetByID(ctx context.Context, id uint) (models.User, error)
	FindByIdentifier(ctx context.Context, identifier string) (models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, id uint, updates map[string]interface{}) error
	IdentifierTaken(ctx context.Context, column, value string, excludeID uint) (bool, error)
	CountByRole(ctx context.Context, role models.Role) (int64, error)
	ListActiveTeachers(ctx context.Context) ([]models.User, error)
	CountByGroup(ctx context.Context, column string) (map[string]int64, error)
	TouchLogin(ctx context.Context, id uint, at time.Time) error
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository constructs the user repository.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) List(ctx context.Context, q listquery.Query) ([]models.User, int64, error) {
	countSQL, countArgs := q.CountSQL("users")
	var total int64
	if err := r.db.WithContext(ctx).Raw(countSQL, countArgs...).Scan(&total).Error; err != nil {
		return nil, 0, err
	}

	selectSQL, selectArgs := q.SelectSQL("SELECT * FROM users", "users.role ASC, users.full_name ASC, users.id ASC")
	var users []models.User
	if err := r.db.WithContext(ctx).Raw(selectSQL, selectArgs...).Scan(&users).Error; err != nil {
		return nil, 0, err
	}

	return users, total, nil
}

func (r *userRepository) GetByID(ctx context.Context, id uint) (models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return models.User{}, err
	}
	return user, nil
}

func (r *userRepository) FindByIdentifier(ctx context.Context, identifier string) (models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).
		Where("username = ? OR personal_code = ?", identifier, identifier).
		First(&user).Error
	if err != nil {
		return models.User{}, err
	}
	return user, nil
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *userRepository) Update(ctx context.Context, id uint, updates map[string]interface{}) error {
	result := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// IdentifierTaken checks username or personal_code uniqueness; column is one of those two names.
func (r *userRepository) IdentifierTaken(ctx context.Context, column, value string, excludeID uint) (bool, error) {
	if column != "username" && column != "personal_code" {
		column = "username"
	}
	var count int64
	err := r.db.WithContext(ctx).Model(&models.User{}).
		Where(column+" = ?", value).
		Where("id <> ?", excludeID).
		Count(&count).Error
	return count > 0, err
}

func (r *userRepository) CountByRole(ctx context.Context, role models.Role) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.User{}).Where("role = ?", role).Count(&count).Error
	return count, err
}

func (r *userRepository) ListActiveTeachers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := r.db.WithContext(ctx).
		Where("role = ? AND is_active = ?", models.RoleTeacher, true).
		Order("full_name ASC").
		Find(&users).Error
	return users, err
}

func (r *userRepository) CountByGroup(ctx context.Context, column string) (map[string]int64, error) {
	return countByGroup(ctx, r.db, "users", column, listquery.Query{})
}

func (r *userRepository) TouchLogin(ctx context.Context, id uint, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("last_login_at", at).Error
}
