package users

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"sds-backend/internal/crm"
	"sds-backend/internal/shared/server/middleware"
	"sds-backend/internal/shared/server/respond"
)

// Handler wires user management routes to the service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches user routes to an authenticated router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/users", h.list)
	rg.PATCH("/users/:id/roles", middleware.RequireRole(crm.RoleAdmin), h.updateRoles)
}

func (h *Handler) list(c *gin.Context) {
	claims, ok := middleware.ClaimsFromContext(c)
	if !ok {
		respond.Error(c, http.StatusUnauthorized, "unauthenticated", "Authentication required", nil)
		return
	}

	accountID := claims.AccountID
	// Admins may inspect any account.
	if requested := c.Query("accountId"); requested != "" && claims.HasRole(crm.RoleAdmin) {
		accountID = requested
	}
	if accountID == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "no account associated with this session", nil)
		return
	}

	list, err := h.Svc.List(c.Request.Context(), accountID)
	if err != nil {
		respond.Error(c, http.StatusServiceUnavailable, "upstream_error", "failed to list users", nil)
		return
	}
	respond.JSON(c, http.StatusOK, gin.H{"users": list})
}

type updateRolesRequest struct {
	Flags map[string]bool `json:"flags"`
}

func (h *Handler) updateRoles(c *gin.Context) {
	var req updateRolesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	if len(req.Flags) == 0 {
		respond.Error(c, http.StatusBadRequest, "validation_error", "flags are required", nil)
		return
	}

	user, err := h.Svc.UpdateRoles(c.Request.Context(), c.Param("id"), req.Flags)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "user not found", nil)
			return
		}
		respond.Error(c, http.StatusServiceUnavailable, "upstream_error", "failed to update roles", nil)
		return
	}
	respond.JSON(c, http.StatusOK, user)
}
