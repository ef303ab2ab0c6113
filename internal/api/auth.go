package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/OfirPatish/Chattrix-sub000/internal/auth"
	"github.com/OfirPatish/Chattrix-sub000/internal/database"
	"github.com/OfirPatish/Chattrix-sub000/internal/logger"
	"github.com/OfirPatish/Chattrix-sub000/internal/models"
)

var log = logger.New("api")

// AuthHandler handles authentication routes
type AuthHandler struct {
	DB     database.Store
	Tokens *auth.Service
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(db database.Store, tokens *auth.Service) *AuthHandler {
	return &AuthHandler{DB: db, Tokens: tokens}
}

// tokenPair issues both tokens for a user
func (h *AuthHandler) tokenPair(userID uuid.UUID) (string, string, error) {
	accessToken, _, err := h.Tokens.IssueAccessToken(userID)
	if err != nil {
		return "", "", err
	}
	refreshToken, _, err := h.Tokens.IssueRefreshToken(userID)
	if err != nil {
		return "", "", err
	}
	return accessToken, refreshToken, nil
}

// Register handles user registration
func (h *AuthHandler) Register(c *gin.Context) {
	var input models.UserRegistration

	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	hashedPassword, err := auth.HashPassword(input.Password)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process password"})
		return
	}

	user, err := h.DB.CreateUser(input.Username, input.Email, hashedPassword)
	if errors.Is(err, database.ErrUserAlreadyExists) {
		c.JSON(http.StatusConflict, gin.H{"error": "User already exists"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user"})
		return
	}

	accessToken, refreshToken, err := h.tokenPair(user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate tokens"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"user":         user.Public(),
		"accessToken":  accessToken,
		"refreshToken": refreshToken,
	})
}

// Login handles user login
func (h *AuthHandler) Login(c *gin.Context) {
	var input models.UserLogin

	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.DB.GetUserByEmail(input.Email)
	if errors.Is(err, database.ErrUserNotFound) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve user"})
		return
	}

	if !auth.CheckPasswordHash(input.Password, user.PasswordHash) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	accessToken, refreshToken, err := h.tokenPair(user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate tokens"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user":         user.Public(),
		"accessToken":  accessToken,
		"refreshToken": refreshToken,
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

// Refresh exchanges a valid refresh token for a fresh access token
func (h *AuthHandler) Refresh(c *gin.Context) {
	var input refreshRequest

	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID, err := h.Tokens.Verify(c.Request.Context(), input.RefreshToken, auth.TokenKindRefresh)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid refresh token"})
		return
	}

	accessToken, _, err := h.Tokens.IssueAccessToken(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"accessToken": accessToken})
}

// Logout blacklists both tokens and flips the user offline
func (h *AuthHandler) Logout(c *gin.Context) {
	var input refreshRequest

	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.MustGet("userID").(uuid.UUID)

	if err := h.Tokens.Revoke(c.Request.Context(), input.RefreshToken); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to revoke token"})
		return
	}

	if accessToken, ok := c.Get("accessToken"); ok {
		if err := h.Tokens.Revoke(c.Request.Context(), accessToken.(string)); err != nil {
			log.Error("Failed to revoke access token for user %s: %v", userID, err)
		}
	}

	if err := h.DB.SetOnline(userID, false); err != nil {
		log.Warn("Failed to flip user %s offline at logout: %v", userID, err)
	}

	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

// GetMe returns the current user's profile
func (h *AuthHandler) GetMe(c *gin.Context) {
	userID := c.MustGet("userID").(uuid.UUID)

	user, err := h.DB.GetUserByID(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve user"})
		return
	}

	c.JSON(http.StatusOK, user.Public())
}
