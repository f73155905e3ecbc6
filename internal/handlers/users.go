package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
	"gorm.io/gorm"

	"clinic-tracker/backend/internal/apperr"
	"clinic-tracker/backend/internal/middleware"
	"clinic-tracker/backend/internal/services"
)

type UserHandler struct {
	db          *gorm.DB
	userService services.UserService
}

func NewUserHandler(db *gorm.DB, userService services.UserService) *UserHandler {
	return &UserHandler{db: db, userService: userService}
}

// Me returns the authenticated user's own record, password omitted.
func (h *UserHandler) Me(c *gin.Context) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		respondError(c, apperr.Unauthenticated("user not authenticated"))
		return
	}

	user, err := h.userService.GetUserByID(h.db, actor.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// GetDoctors lists doctors for assignment pickers. Route-gated to admin and
// doctor roles.
func (h *UserHandler) GetDoctors(c *gin.Context) {
	doctors, err := h.userService.GetDoctors(h.db)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, doctors)
}

func (h *UserHandler) GetUsers(c *gin.Context) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		respondError(c, apperr.Unauthenticated("user not authenticated"))
		return
	}

	users, err := h.userService.GetUsers(h.db, actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

func (h *UserHandler) UpdateUser(c *gin.Context) {
	actor, userID, ok := h.actorAndUserID(c)
	if !ok {
		return
	}

	var req struct {
		Name     *string `json:"name"`
		Email    *string `json:"email"`
		Role     *string `json:"role"`
		Password *string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.Validation("invalid request body: %v", err))
		return
	}

	user, err := h.userService.UpdateUser(h.db, actor, userID, services.UpdateUserInput{
		Name:     req.Name,
		Email:    req.Email,
		Role:     req.Role,
		Password: req.Password,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *UserHandler) DeleteUser(c *gin.Context) {
	actor, userID, ok := h.actorAndUserID(c)
	if !ok {
		return
	}

	if err := h.userService.DeleteUser(h.db, actor, userID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":      userID.String(),
		"message": "User deleted successfully",
	})
}

func (h *UserHandler) actorAndUserID(c *gin.Context) (services.Actor, uuid.UUID, bool) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		respondError(c, apperr.Unauthenticated("user not authenticated"))
		return services.Actor{}, uuid.Nil, false
	}

	userID, err := uuid.FromString(c.Param("id"))
	if err != nil {
		respondError(c, apperr.InvalidIdentifier("invalid user ID format"))
		return services.Actor{}, uuid.Nil, false
	}
	return actor, userID, true
}
