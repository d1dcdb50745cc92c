package services

import (
	"context"
	"errors"
	"strings"

	"github.com/anjiri1684/zukih_store/models"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var (
	ErrInvalidRole      = errors.New("role must be customer or admin")
	ErrSelfModification = errors.New("admins cannot change their own role or status")
)

type UserService struct {
	db *gorm.DB
}

func NewUserService(db *gorm.DB) *UserService {
	return &UserService{db: db}
}

// ListUsers pages through accounts, newest first, optionally filtered by a name or email fragment.
func (s *UserService) ListUsers(ctx context.Context, search string, page, limit int) ([]models.User, Page, error) {
	page, limit = normalizePage(page, limit)

	query := s.db.WithContext(ctx).Model(&models.User{})
	if search = strings.TrimSpace(search); search != "" {
		term := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(full_name) LIKE ? OR LOWER(email) LIKE ?", term, term)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, Page{}, err
	}

	var users []models.User
	err := query.Order("created_at desc").Offset((page - 1) * limit).Limit(limit).Find(&users).Error
	return users, newPage(total, page, limit), err
}

func (s *UserService) UpdateRole(ctx context.Context, actorID, userID uuid.UUID, role string) (*models.User, error) {
	if role != models.RoleCustomer && role != models.RoleAdmin {
		return nil, ErrInvalidRole
	}
	return s.update(ctx, actorID, userID, "role", role)
}

func (s *UserService) UpdateStatus(ctx context.Context, actorID, userID uuid.UUID, active bool) (*models.User, error) {
	return s.update(ctx, actorID, userID, "is_active", active)
}

func (s *UserService) update(ctx context.Context, actorID, userID uuid.UUID, column string, value interface{}) (*models.User, error) {
	if actorID == userID {
		return nil, ErrSelfModification
	}

	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(&user).Update(column, value).Error; err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{"user_id": userID, "by": actorID, column: value}).Info("User updated by admin")
	return &user, nil
}

// ActiveRole is the stored role of an active user. Disabled or unknown users have no role.
func (s *UserService) ActiveRole(ctx context.Context, userID uuid.UUID) (string, error) {
	var user models.User
	err := s.db.WithContext(ctx).Select("role", "is_active").First(&user, "id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if !user.IsActive {
		return "", nil
	}
	return user.Role, nil
}
