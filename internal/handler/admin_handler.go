package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/motobiketours/service-booking/internal/application"
	"github.com/motobiketours/service-booking/internal/domain"
	"github.com/motobiketours/service-booking/internal/platform/auth"
	"github.com/motobiketours/service-booking/internal/platform/middleware"
	"github.com/motobiketours/service-booking/internal/platform/response"
)

// AdminBookingUseCases is the back-office booking API.
type AdminBookingUseCases interface {
	ListBookings(ctx context.Context, q application.ListBookingsQuery) (*domain.PaginatedResult[application.BookingDTO], error)
	ConfirmBooking(ctx context.Context, bookingID uuid.UUID) (*application.BookingDTO, error)
	GetBookingStats(ctx context.Context) (*application.BookingStatsDTO, error)
}

// ExpiryTrigger cancels lapsed holds on demand. It does not wait for the
// periodic sweep's lease.
type ExpiryTrigger interface {
	AutoCancelExpiredBookings(ctx context.Context) (int, error)
}

// AdminBookingHandler handles admin HTTP requests for booking management.
type AdminBookingHandler struct {
	service AdminBookingUseCases
	expiry  ExpiryTrigger
}

// NewAdminBookingHandler creates a new AdminBookingHandler.
func NewAdminBookingHandler(service AdminBookingUseCases, expiry ExpiryTrigger) *AdminBookingHandler {
	return &AdminBookingHandler{service: service, expiry: expiry}
}

// RegisterRoutes registers admin booking routes.
func (h *AdminBookingHandler) RegisterRoutes(r *gin.RouterGroup, validator middleware.TokenValidator) {
	authMW := middleware.AuthMiddleware(validator)
	adminRole := middleware.RequireRole(auth.RoleAdmin)

	admin := r.Group("/api/v1/admin")
	admin.Use(authMW, adminRole)
	{
		admin.GET("/bookings", h.ListBookings)
		admin.POST("/bookings/expire", h.ExpireBookings)
		admin.POST("/bookings/:id/confirm", h.ConfirmBooking)
		admin.GET("/stats/bookings", h.BookingStats)
	}
}

// ListBookings handles GET /api/v1/admin/bookings.
func (h *AdminBookingHandler) ListBookings(c *gin.Context) {
	var q application.ListBookingsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.ListBookings(c.Request.Context(), q)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Paginated(c, result.Items, result.Total, result.Page, result.Limit)
}

// ConfirmBooking handles POST /api/v1/admin/bookings/:id/confirm.
func (h *AdminBookingHandler) ConfirmBooking(c *gin.Context) {
	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid booking ID")
		return
	}

	result, err := h.service.ConfirmBooking(c.Request.Context(), bookingID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// ExpireBookings handles POST /api/v1/admin/bookings/expire.
func (h *AdminBookingHandler) ExpireBookings(c *gin.Context) {
	n, err := h.expiry.AutoCancelExpiredBookings(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, gin.H{"cancelled": n})
}

// BookingStats handles GET /api/v1/admin/stats/bookings.
func (h *AdminBookingHandler) BookingStats(c *gin.Context) {
	stats, err := h.service.GetBookingStats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, stats)
}
