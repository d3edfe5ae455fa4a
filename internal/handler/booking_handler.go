package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/motobiketours/service-booking/internal/application"
	"github.com/motobiketours/service-booking/internal/domain"
	"github.com/motobiketours/service-booking/internal/platform/middleware"
	"github.com/motobiketours/service-booking/internal/platform/response"
)

// BookingUseCases is the customer-facing booking API.
type BookingUseCases interface {
	CreateBooking(ctx context.Context, userID uuid.UUID, req application.CreateBookingRequest) (*application.BookingDTO, error)
	GetBookingDetail(ctx context.Context, bookingID uuid.UUID, requester application.Requester) (*application.BookingDTO, error)
	UpdateBooking(ctx context.Context, bookingID uuid.UUID, req application.UpdateBookingRequest, requester application.Requester) (*application.BookingDTO, error)
	CancelBooking(ctx context.Context, bookingID uuid.UUID, requester application.Requester) (*application.BookingDTO, error)
	ListUserBookings(ctx context.Context, userID uuid.UUID, q application.ListBookingsQuery) (*domain.PaginatedResult[application.BookingDTO], error)
	GenerateInvoice(ctx context.Context, bookingID uuid.UUID, requester application.Requester) ([]byte, error)
}

// BookingHandler handles HTTP requests for booking operations.
type BookingHandler struct {
	service BookingUseCases
}

// NewBookingHandler creates a new BookingHandler.
func NewBookingHandler(service BookingUseCases) *BookingHandler {
	return &BookingHandler{service: service}
}

// RegisterRoutes registers all booking routes on the given router group.
func (h *BookingHandler) RegisterRoutes(r *gin.RouterGroup, validator middleware.TokenValidator) {
	authMW := middleware.AuthMiddleware(validator)

	bookings := r.Group("/api/v1/bookings")
	bookings.Use(authMW)
	{
		bookings.POST("", h.CreateBooking)
		bookings.GET("/my-bookings", h.ListMyBookings)
		bookings.GET("/:id", h.GetBooking)
		bookings.PATCH("/:id", h.UpdateBooking)
		bookings.POST("/:id/cancel", h.CancelBooking)
		bookings.GET("/:id/invoice", h.DownloadInvoice)
	}
}

// CreateBooking handles POST /api/v1/bookings.
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "unauthorized")
		return
	}

	var req application.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.CreateBooking(c.Request.Context(), userID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, result)
}

// ListMyBookings handles GET /api/v1/bookings/my-bookings.
func (h *BookingHandler) ListMyBookings(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "unauthorized")
		return
	}

	var q application.ListBookingsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.ListUserBookings(c.Request.Context(), userID, q)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Paginated(c, result.Items, result.Total, result.Page, result.Limit)
}

// GetBooking handles GET /api/v1/bookings/:id.
func (h *BookingHandler) GetBooking(c *gin.Context) {
	bookingID, requester, ok := bookingRequest(c)
	if !ok {
		return
	}

	result, err := h.service.GetBookingDetail(c.Request.Context(), bookingID, requester)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// UpdateBooking handles PATCH /api/v1/bookings/:id.
func (h *BookingHandler) UpdateBooking(c *gin.Context) {
	bookingID, requester, ok := bookingRequest(c)
	if !ok {
		return
	}

	var req application.UpdateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.UpdateBooking(c.Request.Context(), bookingID, req, requester)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// CancelBooking handles POST /api/v1/bookings/:id/cancel.
func (h *BookingHandler) CancelBooking(c *gin.Context) {
	bookingID, requester, ok := bookingRequest(c)
	if !ok {
		return
	}

	result, err := h.service.CancelBooking(c.Request.Context(), bookingID, requester)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// DownloadInvoice handles GET /api/v1/bookings/:id/invoice.
func (h *BookingHandler) DownloadInvoice(c *gin.Context) {
	bookingID, requester, ok := bookingRequest(c)
	if !ok {
		return
	}

	pdf, err := h.service.GenerateInvoice(c.Request.Context(), bookingID, requester)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="invoice-%s.pdf"`, bookingID))
	c.Data(http.StatusOK, "application/pdf", pdf)
}

// bookingRequest parses the :id path parameter and the caller's identity.
// It writes the error response itself when either is missing.
func bookingRequest(c *gin.Context) (uuid.UUID, application.Requester, bool) {
	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid booking ID")
		return uuid.Nil, application.Requester{}, false
	}

	requester, ok := requesterFrom(c)
	if !ok {
		response.Unauthorized(c, "unauthorized")
		return uuid.Nil, application.Requester{}, false
	}
	return bookingID, requester, true
}

func requesterFrom(c *gin.Context) (application.Requester, bool) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return application.Requester{}, false
	}
	return application.Requester{UserID: userID, IsAdmin: middleware.IsAdmin(c)}, true
}
