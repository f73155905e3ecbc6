package services

import (
	"errors"
	"strings"

	"github.com/gofrs/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"clinic-tracker/backend/internal/apperr"
	"clinic-tracker/backend/internal/models"
)

// UpdateUserInput carries only the fields the admin set. Nil means
// "leave unchanged".
type UpdateUserInput struct {
	Name     *string
	Email    *string
	Role     *string
	Password *string
}

type UserService interface {
	GetUserByID(db *gorm.DB, id uuid.UUID) (*models.User, error)
	GetDoctors(db *gorm.DB) ([]models.DoctorSummary, error)
	GetUsers(db *gorm.DB, actor Actor) ([]models.User, error)
	UpdateUser(db *gorm.DB, actor Actor, id uuid.UUID, input UpdateUserInput) (*models.User, error)
	DeleteUser(db *gorm.DB, actor Actor, id uuid.UUID) error
}

type UserServiceImpl struct {
	bcryptCost int
}

func NewUserService(bcryptCost int) *UserServiceImpl {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &UserServiceImpl{bcryptCost: bcryptCost}
}

func (s *UserServiceImpl) GetUserByID(db *gorm.DB, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := db.Where("id = ?", id).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("user not found")
		}
		return nil, err
	}
	return &user, nil
}

// GetDoctors lists every doctor as the minimal projection used when an admin
// picks an assignee. Admins and doctors may call this.
func (s *UserServiceImpl) GetDoctors(db *gorm.DB) ([]models.DoctorSummary, error) {
	var doctors []models.User
	if err := db.Where("role = ?", models.RoleDoctor).Order("name ASC").Find(&doctors).Error; err != nil {
		return nil, err
	}

	summaries := make([]models.DoctorSummary, 0, len(doctors))
	for _, doctor := range doctors {
		summaries = append(summaries, doctor.Summary())
	}
	return summaries, nil
}

func (s *UserServiceImpl) GetUsers(db *gorm.DB, actor Actor) ([]models.User, error) {
	if !actor.IsAdmin() {
		return nil, apperr.Forbidden("not authorized to list users")
	}
	var users []models.User
	if err := db.Order("created_at DESC").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (s *UserServiceImpl) UpdateUser(db *gorm.DB, actor Actor, id uuid.UUID, input UpdateUserInput) (*models.User, error) {
	if !actor.IsAdmin() {
		return nil, apperr.Forbidden("not authorized to manage users")
	}

	user, err := s.GetUserByID(db, id)
	if err != nil {
		return nil, err
	}

	// An admin cannot demote their own account through this route.
	if user.ID == actor.ID && input.Role != nil && *input.Role != models.RoleAdmin {
		return nil, apperr.Forbidden("admin cannot change their own role to non-admin")
	}

	updates := map[string]interface{}{}
	if input.Name != nil && strings.TrimSpace(*input.Name) != "" {
		updates["name"] = strings.TrimSpace(*input.Name)
	}
	if input.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*input.Email))
		if email != "" && email != user.Email {
			var existing models.User
			if err := db.Where("email = ? AND id <> ?", email, user.ID).First(&existing).Error; err == nil {
				return nil, apperr.Conflict("email already in use by another user")
			} else if !errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, err
			}
			updates["email"] = email
		}
	}
	if input.Role != nil {
		if !models.IsValidRole(*input.Role) {
			return nil, apperr.Validation("invalid role %q", *input.Role)
		}
		updates["role"] = *input.Role
	}
	if input.Password != nil && *input.Password != "" {
		hashed, err := bcrypt.GenerateFromPassword([]byte(*input.Password), s.bcryptCost)
		if err != nil {
			return nil, err
		}
		updates["password"] = string(hashed)
	}

	if len(updates) > 0 {
		if err := db.Model(user).Updates(updates).Error; err != nil {
			return nil, err
		}
	}

	return s.GetUserByID(db, id)
}

// DeleteUser removes a user account. Deletion is refused while any task still
// references the user as assignee, so task rows never dangle.
func (s *UserServiceImpl) DeleteUser(db *gorm.DB, actor Actor, id uuid.UUID) error {
	if !actor.IsAdmin() {
		return apperr.Forbidden("not authorized to manage users")
	}
	if id == actor.ID {
		return apperr.Forbidden("admin cannot delete their own account")
	}

	user, err := s.GetUserByID(db, id)
	if err != nil {
		return err
	}

	var assigned int64
	if err := db.Model(&models.Task{}).Where("assigned_to = ?", id).Count(&assigned).Error; err != nil {
		return err
	}
	if assigned > 0 {
		return apperr.Conflict("user still has %d assigned task(s); reassign or delete them first", assigned)
	}

	return db.Delete(user).Error
}
