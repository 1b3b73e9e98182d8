package client

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/vip-booking/internal/handler"
	"github.com/jwalitptl/vip-booking/internal/middleware"
	"github.com/jwalitptl/vip-booking/internal/service/history"
	"github.com/jwalitptl/vip-booking/pkg/auth"
)

type Handler struct {
	history *history.Service
}

func NewHandler(history *history.Service) *Handler {
	return &Handler{history: history}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	clients := r.Group("/clients", middleware.RequireRole(auth.RoleAdmin))
	{
		clients.GET("/:id/history", h.GetHistory)
	}
}

func (h *Handler) GetHistory(c *gin.Context) {
	hist, err := h.history.GetHistory(c.Request.Context(), handler.Param(c, "id"))
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, hist)
}
