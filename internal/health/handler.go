package health

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"sds-backend/internal/shared/server/respond"
)

// Handler wires the health routes.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches the health routes to a public router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/health", h.status)
	rg.GET("/health/crm", h.crmStatus)
}

func (h *Handler) status(c *gin.Context) {
	respond.JSON(c, http.StatusOK, h.Svc.Status())
}

func (h *Handler) crmStatus(c *gin.Context) {
	status := h.Svc.CRMStatus(c.Request.Context())
	code := http.StatusOK
	if reachable, _ := status["reachable"].(bool); !reachable {
		code = http.StatusServiceUnavailable
	}
	respond.JSON(c, code, status)
}
