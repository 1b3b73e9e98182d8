package slot

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/vip-booking/internal/handler"
	"github.com/jwalitptl/vip-booking/internal/middleware"
	"github.com/jwalitptl/vip-booking/internal/model"
	"github.com/jwalitptl/vip-booking/internal/service/slot"
	"github.com/jwalitptl/vip-booking/pkg/auth"
	apperrors "github.com/jwalitptl/vip-booking/pkg/errors"
)

type Handler struct {
	svc *slot.Service
}

func NewHandler(svc *slot.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	slots := r.Group("/slots")
	{
		slots.GET("/bookable", h.QueryBookable)

		admin := slots.Group("", middleware.RequireRole(auth.RoleAdmin))
		admin.GET("", h.ListSlots)
		admin.POST("", h.CreateSlot)
		admin.GET("/:id", h.GetSlot)
		admin.PATCH("/:id/availability", h.ToggleAvailability)
		admin.DELETE("/:id", h.DeleteSlot)
	}
}

type rangeQuery struct {
	From string `form:"from" binding:"omitempty,datetime=2006-01-02"`
	To   string `form:"to" binding:"omitempty,datetime=2006-01-02"`
}

func (q rangeQuery) parse() (from, to *time.Time, err error) {
	if q.From != "" {
		d, err := model.ParseDate(q.From)
		if err != nil {
			return nil, nil, apperrors.Validation(err.Error())
		}
		from = &d
	}
	if q.To != "" {
		d, err := model.ParseDate(q.To)
		if err != nil {
			return nil, nil, apperrors.Validation(err.Error())
		}
		to = &d
	}
	return from, to, nil
}

func (h *Handler) QueryBookable(c *gin.Context) {
	var q rangeQuery
	if !handler.BindQuery(c, &q) {
		return
	}
	from, to, err := q.parse()
	if err != nil {
		handler.Fail(c, err)
		return
	}

	slots, err := h.svc.QueryBookableRange(c.Request.Context(), from, to)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, slots)
}

type listQuery struct {
	rangeQuery
	Available bool `form:"available"`
}

func (h *Handler) ListSlots(c *gin.Context) {
	var q listQuery
	if !handler.BindQuery(c, &q) {
		return
	}
	from, to, err := q.parse()
	if err != nil {
		handler.Fail(c, err)
		return
	}

	slots, err := h.svc.ListSlots(c.Request.Context(), &model.SlotFilters{
		From:          from,
		To:            to,
		OnlyAvailable: q.Available,
	})
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, slots)
}

func (h *Handler) CreateSlot(c *gin.Context) {
	var req model.CreateSlotRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	s, err := h.svc.CreateSlot(c.Request.Context(), req.Date, req.StartTime, req.EndTime)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.Created(c, s)
}

func (h *Handler) GetSlot(c *gin.Context) {
	s, err := h.svc.GetSlot(c.Request.Context(), handler.Param(c, "id"))
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, s)
}

func (h *Handler) ToggleAvailability(c *gin.Context) {
	s, err := h.svc.ToggleAvailability(c.Request.Context(), handler.Param(c, "id"))
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, s)
}

func (h *Handler) DeleteSlot(c *gin.Context) {
	if err := h.svc.DeleteSlot(c.Request.Context(), handler.Param(c, "id")); err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, gin.H{"deleted": true})
}
