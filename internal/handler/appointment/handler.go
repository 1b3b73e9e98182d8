package appointment

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/vip-booking/internal/handler"
	"github.com/jwalitptl/vip-booking/internal/middleware"
	"github.com/jwalitptl/vip-booking/internal/model"
	"github.com/jwalitptl/vip-booking/internal/service/appointment"
	"github.com/jwalitptl/vip-booking/internal/service/booking"
	"github.com/jwalitptl/vip-booking/internal/service/negotiation"
	"github.com/jwalitptl/vip-booking/pkg/auth"
	"github.com/jwalitptl/vip-booking/pkg/httputil"
)

const maxPageSize = 100

type Handler struct {
	appointments *appointment.Service
	booking      *booking.Service
	negotiation  *negotiation.Service
}

func NewHandler(appointments *appointment.Service, booking *booking.Service, negotiation *negotiation.Service) *Handler {
	return &Handler{
		appointments: appointments,
		booking:      booking,
		negotiation:  negotiation,
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	admin := middleware.RequireRole(auth.RoleAdmin)
	client := middleware.RequireRole(auth.RoleClient)

	appointments := r.Group("/appointments")
	{
		appointments.POST("", client, h.SubmitRequest)
		appointments.GET("", h.List)
		appointments.GET("/stats", admin, h.Stats)
		appointments.GET("/:id", h.Get)

		appointments.POST("/:id/pay", client, h.Pay)
		appointments.POST("/:id/payment", admin, h.RecordPayment)
		appointments.POST("/:id/confirm", admin, h.Confirm)
		appointments.POST("/:id/reject", admin, h.Reject)
		appointments.POST("/:id/alternative", admin, h.ProposeAlternative)
		appointments.POST("/:id/alternative/response", client, h.RespondAlternative)
		appointments.GET("/:id/alternatives", h.ListAlternatives)
		appointments.POST("/:id/complete", admin, h.Complete)
		appointments.POST("/:id/no-show", admin, h.MarkNoShow)
		appointments.POST("/:id/cancel", h.Cancel)
		appointments.PUT("/:id/notes", admin, h.UpdateNotes)
	}
}

// owner returns the client id reads and commands are scoped to. Admins see
// every appointment.
func owner(c *gin.Context) string {
	if middleware.IsAdmin(c) {
		return ""
	}
	subject, _ := middleware.Caller(c)
	return subject
}

// render hides the agency's private notes from clients.
func render(c *gin.Context, a *model.Appointment) *model.Appointment {
	if a == nil || middleware.IsAdmin(c) {
		return a
	}
	out := a.Clone()
	out.AdminNotes = nil
	return out
}

func (h *Handler) respond(c *gin.Context, a *model.Appointment, err error) {
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, render(c, a))
}

func (h *Handler) SubmitRequest(c *gin.Context) {
	var req model.CreateAppointmentRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	clientID, _ := middleware.Caller(c)
	a, err := h.booking.SubmitRequest(c.Request.Context(), clientID, &req)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.Created(c, render(c, a))
}

type listQuery struct {
	Status   string `form:"status"`
	Modality string `form:"modality"`
	ClientID string `form:"client_id"`
	Search   string `form:"q" binding:"max=200"`
	model.Pagination
}

func (h *Handler) List(c *gin.Context) {
	var q listQuery
	if !handler.BindQuery(c, &q) {
		return
	}

	limit, offset := q.Pagination.Normalize(maxPageSize)
	filters := &model.AppointmentFilters{
		Status:   model.AppointmentStatus(q.Status),
		Modality: model.Modality(q.Modality),
		ClientID: q.ClientID,
		Search:   q.Search,
		Limit:    limit,
		Offset:   offset,
	}
	if clientID := owner(c); clientID != "" {
		filters.ClientID = clientID
	}

	page, err := h.appointments.List(c.Request.Context(), filters)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	items := make([]*model.Appointment, 0, len(page.Items))
	for _, a := range page.Items {
		items = append(items, render(c, a))
	}
	httputil.RespondWithPagination(c, items, offset/limit+1, limit, page.Total)
}

func (h *Handler) Stats(c *gin.Context) {
	counts, err := h.appointments.CountByStatus(c.Request.Context())
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, counts)
}

func (h *Handler) Get(c *gin.Context) {
	a, err := h.appointments.Get(c.Request.Context(), handler.Param(c, "id"), owner(c))
	h.respond(c, a, err)
}

func (h *Handler) Pay(c *gin.Context) {
	clientID, _ := middleware.Caller(c)
	a, err := h.booking.PayAppointment(c.Request.Context(), handler.Param(c, "id"), clientID)
	h.respond(c, a, err)
}

func (h *Handler) RecordPayment(c *gin.Context) {
	var req model.RecordPaymentRequest
	if !handler.BindJSON(c, &req) {
		return
	}
	a, err := h.booking.RecordPayment(c.Request.Context(), handler.Param(c, "id"), req.Reference)
	h.respond(c, a, err)
}

func (h *Handler) Confirm(c *gin.Context) {
	var req model.ConfirmAppointmentRequest
	if c.Request.ContentLength != 0 && !handler.BindJSON(c, &req) {
		return
	}
	a, err := h.appointments.Confirm(c.Request.Context(), handler.Param(c, "id"), req.Response)
	h.respond(c, a, err)
}

func (h *Handler) Reject(c *gin.Context) {
	var req model.ReasonRequest
	if !handler.BindJSON(c, &req) {
		return
	}
	a, err := h.appointments.Reject(c.Request.Context(), handler.Param(c, "id"), req.Reason)
	h.respond(c, a, err)
}

func (h *Handler) ProposeAlternative(c *gin.Context) {
	var req model.ProposeAlternativeRequest
	if !handler.BindJSON(c, &req) {
		return
	}
	a, err := h.negotiation.Propose(c.Request.Context(), handler.Param(c, "id"), req.SlotID, req.Reason)
	h.respond(c, a, err)
}

func (h *Handler) RespondAlternative(c *gin.Context) {
	var req model.RespondAlternativeRequest
	if !handler.BindJSON(c, &req) {
		return
	}
	clientID, _ := middleware.Caller(c)
	a, err := h.negotiation.Respond(c.Request.Context(), handler.Param(c, "id"), clientID, *req.Accept)
	h.respond(c, a, err)
}

func (h *Handler) ListAlternatives(c *gin.Context) {
	proposals, err := h.negotiation.ListProposals(c.Request.Context(), handler.Param(c, "id"), owner(c))
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, proposals)
}

func (h *Handler) Complete(c *gin.Context) {
	a, err := h.appointments.Complete(c.Request.Context(), handler.Param(c, "id"))
	h.respond(c, a, err)
}

func (h *Handler) MarkNoShow(c *gin.Context) {
	a, err := h.appointments.MarkNoShow(c.Request.Context(), handler.Param(c, "id"))
	h.respond(c, a, err)
}

func (h *Handler) Cancel(c *gin.Context) {
	var req model.ReasonRequest
	if !handler.BindJSON(c, &req) {
		return
	}
	a, err := h.appointments.Cancel(c.Request.Context(), handler.Param(c, "id"), owner(c), req.Reason)
	h.respond(c, a, err)
}

func (h *Handler) UpdateNotes(c *gin.Context) {
	var req model.UpdateNotesRequest
	if !handler.BindJSON(c, &req) {
		return
	}
	a, err := h.appointments.UpdateNotes(c.Request.Context(), handler.Param(c, "id"), req.Notes)
	h.respond(c, a, err)
}
