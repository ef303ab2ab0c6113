package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/OfirPatish/Chattrix-sub000/internal/database"
	"github.com/OfirPatish/Chattrix-sub000/internal/models"
)

// UserHandler handles user listing and profile routes
type UserHandler struct {
	DB database.Store
}

// NewUserHandler creates a new user handler
func NewUserHandler(db database.Store) *UserHandler {
	return &UserHandler{DB: db}
}

// GetAllUsers lists every other user, for starting new chats
func (h *UserHandler) GetAllUsers(c *gin.Context) {
	userID := c.MustGet("userID").(uuid.UUID)

	users, err := h.DB.GetAllUsers(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve users"})
		return
	}

	publicUsers := make([]*models.PublicUser, 0, len(users))
	for _, user := range users {
		publicUsers = append(publicUsers, user.Public())
	}

	c.JSON(http.StatusOK, publicUsers)
}

// UpdateMe updates the caller's own profile
func (h *UserHandler) UpdateMe(c *gin.Context) {
	userID := c.MustGet("userID").(uuid.UUID)

	var input models.ProfileUpdate
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.DB.UpdateProfile(userID, input)
	if errors.Is(err, database.ErrUserAlreadyExists) {
		c.JSON(http.StatusConflict, gin.H{"error": "Username or email already taken"})
		return
	}
	if errors.Is(err, database.ErrUserNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update profile"})
		return
	}

	c.JSON(http.StatusOK, user.Public())
}
