package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/unitstay/service-booking/internal/application"
	"github.com/unitstay/service-booking/internal/domain"
	"github.com/unitstay/service-booking/internal/platform/response"
)

// BookingHandler handles HTTP requests for booking operations.
type BookingHandler struct {
	service *application.BookingService
}

// NewBookingHandler creates a new BookingHandler.
func NewBookingHandler(service *application.BookingService) *BookingHandler {
	return &BookingHandler{service: service}
}

// RegisterRoutes registers all booking routes on the given router group.
func (h *BookingHandler) RegisterRoutes(r *gin.RouterGroup) {
	bookings := r.Group("/api/v1/booking")
	{
		bookings.POST("", h.CreateBooking)
		bookings.GET("/:booking_id", h.GetBooking)
		bookings.PATCH("/extend", h.ExtendBooking)
	}
}

// CreateBooking handles POST /api/v1/booking.
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	var req application.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Unprocessable(c, err.Error())
		return
	}

	result, err := h.service.CreateBooking(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// GetBooking handles GET /api/v1/booking/:booking_id.
func (h *BookingHandler) GetBooking(c *gin.Context) {
	bookingID, err := strconv.ParseInt(c.Param("booking_id"), 10, 64)
	if err != nil {
		response.BadRequest(c, "invalid booking ID")
		return
	}

	result, err := h.service.GetBooking(c.Request.Context(), bookingID)
	if err != nil {
		if domain.IsNotFound(err) {
			response.NotFound(c, "Booking not found")
			return
		}
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// ExtendBooking handles PATCH /api/v1/booking/extend. An unknown booking is a 400, like
// any other rejected extension.
func (h *BookingHandler) ExtendBooking(c *gin.Context) {
	var req application.ExtendBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Unprocessable(c, err.Error())
		return
	}

	result, err := h.service.ExtendBooking(c.Request.Context(), *req.BookingID, *req.ExtensionDays)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// parsePagination extracts page and limit query parameters with defaults.
func parsePagination(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	return page, limit
}
