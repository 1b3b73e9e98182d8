package auth

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/vip-booking/internal/handler"
	"github.com/jwalitptl/vip-booking/internal/middleware"
	"github.com/jwalitptl/vip-booking/internal/model"
	"github.com/jwalitptl/vip-booking/internal/service/auth"
	pkgauth "github.com/jwalitptl/vip-booking/pkg/auth"
)

type Handler struct {
	svc *auth.Service
}

func NewHandler(svc *auth.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup, authenticate gin.HandlerFunc) {
	group := r.Group("/auth")
	{
		group.POST("/token", h.Login)
		group.POST("/client-token", authenticate, middleware.RequireRole(pkgauth.RoleAdmin), h.ClientToken)
	}
}

func (h *Handler) Login(c *gin.Context) {
	var req model.LoginRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	resp, err := h.svc.Login(c.Request.Context(), &req)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, resp)
}

func (h *Handler) ClientToken(c *gin.Context) {
	var req model.ClientTokenRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	resp, err := h.svc.IssueClientToken(c.Request.Context(), &req)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.Created(c, resp)
}
