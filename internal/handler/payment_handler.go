package handler

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/motobiketours/service-booking/internal/application"
	"github.com/motobiketours/service-booking/internal/domain"
	"github.com/motobiketours/service-booking/internal/platform/middleware"
	"github.com/motobiketours/service-booking/internal/platform/response"
	"go.uber.org/zap"
)

// PaymentUseCases is the payment API.
type PaymentUseCases interface {
	Initiate(ctx context.Context, req application.InitiatePaymentRequest, requester application.Requester) (*application.InitiatePaymentResult, error)
	HandleVNPayCallback(ctx context.Context, params map[string]string) (*application.CallbackResult, error)
	HandleStripeWebhook(ctx context.Context, payload []byte, signatureHeader string) (*application.CallbackResult, error)
	GetBookingPayments(ctx context.Context, bookingID uuid.UUID, requester application.Requester) ([]application.PaymentDTO, error)
}

// maxWebhookBody caps Stripe webhook payloads.
const maxWebhookBody = 64 << 10

// PaymentHandler handles HTTP requests for payments and gateway callbacks.
type PaymentHandler struct {
	service     PaymentUseCases
	frontendURL string
	logger      *zap.Logger
}

// NewPaymentHandler creates a new PaymentHandler. frontendURL is where
// customers land after a VNPay redirect.
func NewPaymentHandler(service PaymentUseCases, frontendURL string, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{
		service:     service,
		frontendURL: strings.TrimRight(frontendURL, "/"),
		logger:      logger,
	}
}

// RegisterRoutes registers payment routes. Gateway callbacks are
// authenticated by signature, not by bearer token.
func (h *PaymentHandler) RegisterRoutes(r *gin.RouterGroup, validator middleware.TokenValidator) {
	authMW := middleware.AuthMiddleware(validator)

	payments := r.Group("/api/v1/payments")
	{
		payments.POST("/initiate", authMW, h.InitiatePayment)
		payments.GET("/booking/:bookingId", authMW, h.GetBookingPayments)
		payments.GET("/vnpay/callback", h.VNPayCallback)
		payments.POST("/stripe/webhook", h.StripeWebhook)
	}
}

// InitiatePayment handles POST /api/v1/payments/initiate.
func (h *PaymentHandler) InitiatePayment(c *gin.Context) {
	requester, ok := requesterFrom(c)
	if !ok {
		response.Unauthorized(c, "unauthorized")
		return
	}

	var req application.InitiatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	req.ClientIP = c.ClientIP()

	result, err := h.service.Initiate(c.Request.Context(), req, requester)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// GetBookingPayments handles GET /api/v1/payments/booking/:bookingId.
func (h *PaymentHandler) GetBookingPayments(c *gin.Context) {
	bookingID, err := uuid.Parse(c.Param("bookingId"))
	if err != nil {
		response.BadRequest(c, "invalid booking ID")
		return
	}
	requester, ok := requesterFrom(c)
	if !ok {
		response.Unauthorized(c, "unauthorized")
		return
	}

	result, err := h.service.GetBookingPayments(c.Request.Context(), bookingID, requester)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// VNPayCallback handles GET /api/v1/payments/vnpay/callback by settling the
// payment and redirecting the customer to the frontend result page.
func (h *PaymentHandler) VNPayCallback(c *gin.Context) {
	params := make(map[string]string)
	for key, values := range c.Request.URL.Query() {
		if len(values) > 0 {
			params[key] = values[0]
		}
	}

	result, err := h.service.HandleVNPayCallback(c.Request.Context(), params)
	if err != nil {
		h.logger.Warn("vnpay callback rejected",
			zap.String("txn_ref", params["vnp_TxnRef"]),
			zap.Error(err),
		)
		q := url.Values{}
		q.Set("message", publicMessage(err))
		c.Redirect(http.StatusFound, h.frontendURL+"/booking/failed?"+q.Encode())
		return
	}

	if result.Success {
		q := url.Values{}
		q.Set("id", result.BookingID.String())
		c.Redirect(http.StatusFound, h.frontendURL+"/booking/success?"+q.Encode())
		return
	}

	q := url.Values{}
	q.Set("id", result.BookingID.String())
	q.Set("message", result.Message)
	c.Redirect(http.StatusFound, h.frontendURL+"/booking/failed?"+q.Encode())
}

// StripeWebhook handles POST /api/v1/payments/stripe/webhook.
func (h *PaymentHandler) StripeWebhook(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody)
	payload, err := c.GetRawData()
	if err != nil {
		response.BadRequest(c, "unreadable webhook body")
		return
	}

	result, err := h.service.HandleStripeWebhook(c.Request.Context(), payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// publicMessage hides internal error details from the redirect URL.
func publicMessage(err error) string {
	var derr *domain.Error
	if errors.As(err, &derr) {
		return derr.Message
	}
	return "Payment could not be processed"
}
