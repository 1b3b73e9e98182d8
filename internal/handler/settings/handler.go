package settings

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/vip-booking/internal/handler"
	"github.com/jwalitptl/vip-booking/internal/service/settings"
)

type Handler struct {
	settings settings.Provider
}

func NewHandler(provider settings.Provider) *Handler {
	return &Handler{settings: provider}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/settings", h.Get)
}

func (h *Handler) Get(c *gin.Context) {
	s, err := h.settings.Get(c.Request.Context())
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, s)
}
