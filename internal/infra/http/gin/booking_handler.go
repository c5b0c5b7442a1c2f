package ginserver

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	gin "github.com/gin-gonic/gin"

	"staybook/internal/app/commands"
	"staybook/internal/app/dto"
	bookingapp "staybook/internal/app/handlers/booking"
	"staybook/internal/app/queries"
)

type BookingHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
	Logger   *slog.Logger
}

// Create accepts the canonical request body as well as its legacy aliases.
func (h BookingHandler) Create(c *gin.Context) {
	if _, ok := requireActor(c); !ok {
		return
	}
	var in dto.BookingRequestInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if listingID := c.Param("id"); listingID != "" && in.ListingID == "" && in.ListingAlias == "" {
		in.ListingID = listingID
	}
	req, err := in.Normalize()
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	cmd := bookingapp.NewCreateBookingCommand(req, c.GetHeader("Idempotency-Key"))
	result, err := commands.Dispatch[bookingapp.CreateBookingCommand, *dto.Booking](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.Header("Location", fmt.Sprintf("/api/v1/bookings/%s", result.ID))
	c.JSON(http.StatusCreated, result)
}

func (h BookingHandler) Get(c *gin.Context) {
	if _, ok := requireActor(c); !ok {
		return
	}
	result, err := queries.Ask[bookingapp.GetBookingQuery, dto.Booking](c.Request.Context(), h.Queries, bookingapp.GetBookingQuery{BookingID: c.Param("id")})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// List returns the caller's bookings as guest, or as host with ?as=host.
func (h BookingHandler) List(c *gin.Context) {
	if _, ok := requireActor(c); !ok {
		return
	}
	q := bookingapp.ListBookingsQuery{
		As:     strings.ToLower(strings.TrimSpace(c.Query("as"))),
		UserID: c.Query("user_id"),
		Status: c.Query("status"),
	}
	result, err := queries.Ask[bookingapp.ListBookingsQuery, dto.BookingCollection](c.Request.Context(), h.Queries, q)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type updateStatusRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

func (h BookingHandler) UpdateStatus(c *gin.Context) {
	if _, ok := requireActor(c); !ok {
		return
	}
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cmd := bookingapp.UpdateBookingStatusCommand{BookingID: c.Param("id"), Status: req.Status, Reason: req.Reason}
	result, err := commands.Dispatch[bookingapp.UpdateBookingStatusCommand, *dto.Booking](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

func (h BookingHandler) Cancel(c *gin.Context) {
	if _, ok := requireActor(c); !ok {
		return
	}
	var req cancelRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	cmd := bookingapp.CancelBookingCommand{BookingID: c.Param("id"), Reason: req.Reason}
	result, err := commands.Dispatch[bookingapp.CancelBookingCommand, *dto.CancelBookingResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Availability is public: GET /listings/:id/availability?check_in=&check_out=.
func (h BookingHandler) Availability(c *gin.Context) {
	checkIn, checkOut, ok := h.bindRange(c)
	if !ok {
		return
	}
	q := bookingapp.CheckAvailabilityQuery{ListingID: c.Param("id"), CheckIn: checkIn, CheckOut: checkOut}
	result, err := queries.Ask[bookingapp.CheckAvailabilityQuery, dto.Availability](c.Request.Context(), h.Queries, q)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Quote prices a stay without booking it.
func (h BookingHandler) Quote(c *gin.Context) {
	checkIn, checkOut, ok := h.bindRange(c)
	if !ok {
		return
	}
	guests, err := parseCount(c.Query("guests"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "guests: " + err.Error()})
		return
	}
	pets, err := parseCount(c.Query("pets"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "pets: " + err.Error()})
		return
	}
	q := bookingapp.CalculatePriceQuery{ListingID: c.Param("id"), CheckIn: checkIn, CheckOut: checkOut, Guests: guests, Pets: pets}
	result, err := queries.Ask[bookingapp.CalculatePriceQuery, dto.PriceQuote](c.Request.Context(), h.Queries, q)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h BookingHandler) bindRange(c *gin.Context) (checkIn, checkOut time.Time, ok bool) {
	checkIn, err := dto.ParseDate(c.Query("check_in"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "check_in: " + err.Error()})
		return checkIn, checkOut, false
	}
	checkOut, err = dto.ParseDate(c.Query("check_out"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "check_out: " + err.Error()})
		return checkIn, checkOut, false
	}
	return checkIn, checkOut, true
}

func parseCount(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid count %q", raw)
	}
	return n, nil
}
