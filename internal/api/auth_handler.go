package api

import (
	"fittrainer/backend/internal/domain"
	"fittrainer/backend/internal/service"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// AuthHandler holds the authentication service dependency.
type AuthHandler struct {
	authService service.AuthService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// --- Request/Response Structs ---

type TelegramLoginRequest struct {
	InitData string      `json:"initData" binding:"required"`
	Role     domain.Role `json:"role" binding:"omitempty,oneof=trainer client"` // Only used when the account is created
}

type RegisterRequest struct {
	Username  string      `json:"username" binding:"required"`
	Password  string      `json:"password" binding:"required,min=8"`
	FirstName string      `json:"firstName" binding:"required"`
	LastName  string      `json:"lastName"`
	Email     string      `json:"email" binding:"omitempty,email"`
	Role      domain.Role `json:"role" binding:"required,oneof=trainer client"`
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// --- Handler Methods ---

// TelegramLogin godoc
// @Summary Log in with Telegram Mini-App init data
// @Description Verifies the signed init-data, creating the account on first login, and returns a JWT token.
// @Tags Auth
// @Accept json
// @Produce json
// @Param credentials body TelegramLoginRequest true "Init data"
// @Success 200 {object} gin.H "Login successful"
// @Failure 400 {object} gin.H "Invalid input (validation error)"
// @Failure 401 {object} gin.H "Invalid or expired init data"
// @Failure 500 {object} gin.H "Internal Server Error"
// @Router /auth/telegram [post]
func (h *AuthHandler) TelegramLogin(c *gin.Context) {
	var req TelegramLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}

	session, err := h.authService.TelegramLogin(c.Request.Context(), req.InitData, req.Role)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{
		"token":   session.Token,
		"user":    session.User,
		"created": session.Created,
	})
}

// Register godoc
// @Summary Register a new user (Trainer or Client)
// @Tags Auth
// @Accept json
// @Produce json
// @Param user body RegisterRequest true "Registration details"
// @Success 201 {object} gin.H "User created successfully"
// @Failure 400 {object} gin.H "Invalid input (validation error)"
// @Failure 409 {object} gin.H "Conflict (username or email already exists)"
// @Router /auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	// Bind JSON request body and perform validation based on `binding` tags
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}

	user, err := h.authService.Register(c.Request.Context(), service.RegisterInput{
		Username:  req.Username,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Role:      req.Role,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, gin.H{"user": user})
}

// Login godoc
// @Summary Log in with username and password
// @Tags Auth
// @Accept json
// @Produce json
// @Param credentials body LoginRequest true "Login credentials"
// @Success 200 {object} gin.H "Login successful"
// @Failure 401 {object} gin.H "Unauthorized (invalid credentials)"
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}

	session, err := h.authService.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"token": session.Token, "user": session.User})
}

// Me returns the authenticated user with its role profile.
func (h *AuthHandler) Me(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	identity, err := h.authService.Me(c.Request.Context(), actor.UserID)
	if err != nil {
		respondError(c, err)
		return
	}

	body := gin.H{"user": identity.User}
	if identity.Trainer != nil {
		body["trainer"] = identity.Trainer
	}
	if identity.Client != nil {
		body["client"] = identity.Client
	}
	respondOK(c, http.StatusOK, body)
}
