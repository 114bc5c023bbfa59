package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	sharedauth "sds-backend/internal/shared/auth"
	"sds-backend/internal/shared/server/middleware"
	"sds-backend/internal/shared/server/respond"
	"sds-backend/internal/shared/telemetry"
)

// Constant answer for forgot-password, regardless of whether the email
// matched anything.
const forgotPasswordMessage = "If an account exists for that email, a password reset link has been sent."

// Handler wires the credential endpoints to the service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterPublicRoutes attaches the unauthenticated auth endpoints.
func (h *Handler) RegisterPublicRoutes(rg *gin.RouterGroup) {
	rg.POST("/auth/register", h.register)
	rg.POST("/auth/login", h.login)
	rg.POST("/auth/forgot-password", h.forgotPassword)
	rg.POST("/auth/reset-password", h.resetPassword)
	rg.POST("/auth/logout", h.logout)
}

// RegisterProtectedRoutes attaches endpoints that need a session.
func (h *Handler) RegisterProtectedRoutes(rg *gin.RouterGroup) {
	rg.GET("/auth/me", h.me)
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) login(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}

	token, claims, err := h.Svc.Login(c.Request.Context(), strings.TrimSpace(req.Email), req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			respond.Error(c, http.StatusUnauthorized, "invalid_credentials", "Invalid email or password", nil)
			return
		}
		telemetry.Error("auth.login_failed", map[string]any{"error": err.Error()})
		respond.Error(c, http.StatusServiceUnavailable, "upstream_error", "login is temporarily unavailable", nil)
		return
	}

	respond.JSON(c, http.StatusOK, gin.H{
		"token": token,
		"user":  userPayload(claims),
	})
}

func (h *Handler) register(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}

	token, claims, err := h.Svc.Register(c.Request.Context(), strings.TrimSpace(req.Email), req.Password)
	switch {
	case err == nil:
		respond.JSON(c, http.StatusCreated, gin.H{
			"token": token,
			"user":  userPayload(claims),
		})
	case errors.Is(err, ErrInvalidCredentials):
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
	case errors.Is(err, ErrNoAccount):
		respond.Error(c, http.StatusNotFound, "no_account", "No account exists for this email", nil)
	case errors.Is(err, ErrCredentialExists):
		respond.Error(c, http.StatusConflict, "already_registered", "This account is already registered", nil)
	default:
		telemetry.Error("auth.register_failed", map[string]any{"error": err.Error()})
		respond.Error(c, http.StatusServiceUnavailable, "upstream_error", "registration is temporarily unavailable", nil)
	}
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

func (h *Handler) forgotPassword(c *gin.Context) {
	var req forgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}

	if err := h.Svc.ForgotPassword(c.Request.Context(), strings.TrimSpace(req.Email)); err != nil {
		// The response stays constant; only the logs know.
		telemetry.Error("auth.forgot_password_failed", map[string]any{"error": err.Error()})
	}
	respond.JSON(c, http.StatusOK, gin.H{"message": forgotPasswordMessage})
}

type resetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

func (h *Handler) resetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}

	err := h.Svc.ResetPassword(c.Request.Context(), req.Token, req.Password)
	switch {
	case err == nil:
		respond.JSON(c, http.StatusOK, gin.H{"message": "Password updated. You can now sign in."})
	case errors.Is(err, ErrInvalidCredentials):
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
	case errors.Is(err, ErrTokenInvalid):
		respond.Error(c, http.StatusBadRequest, "invalid_token", "This reset link is invalid or has expired", nil)
	default:
		telemetry.Error("auth.reset_password_failed", map[string]any{"error": err.Error()})
		respond.Error(c, http.StatusServiceUnavailable, "upstream_error", "password reset is temporarily unavailable", nil)
	}
}

// logout is stateless; tokens simply age out.
func (h *Handler) logout(c *gin.Context) {
	respond.JSON(c, http.StatusOK, gin.H{"message": "Logged out"})
}

func (h *Handler) me(c *gin.Context) {
	claims, ok := middleware.ClaimsFromContext(c)
	if !ok {
		respond.Error(c, http.StatusUnauthorized, "unauthenticated", "Authentication required", nil)
		return
	}
	respond.JSON(c, http.StatusOK, userPayload(claims))
}

func userPayload(claims sharedauth.Claims) gin.H {
	roles := claims.Roles
	if roles == nil {
		roles = []string{}
	}
	return gin.H{
		"id":          claims.Sub,
		"email":       claims.Email,
		"firstName":   claims.FirstName,
		"lastName":    claims.LastName,
		"roles":       roles,
		"contactId":   claims.ContactID,
		"accountId":   claims.AccountID,
		"companyCode": claims.CompanyCode,
	}
}
