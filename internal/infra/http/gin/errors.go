package ginserver

import (
	"errors"
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"staybook/internal/app/commands"
	"staybook/internal/app/dto"
	"staybook/internal/app/middleware"
	"staybook/internal/app/policies"
	"staybook/internal/app/services/auth"
	domainavailability "staybook/internal/domain/availability"
	domainbooking "staybook/internal/domain/booking"
	domaincalendar "staybook/internal/domain/calendar"
	domainlistings "staybook/internal/domain/listings"
	domainpricing "staybook/internal/domain/pricing"
	"staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/money"
)

// statusFor maps application errors onto HTTP statuses. Order matters:
// ErrForbidden wraps ErrUnauthorized and has to be checked first.
func statusFor(err error) int {
	switch {
	case errors.Is(err, auth.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, auth.ErrUnauthorized):
		return http.StatusUnauthorized

	case errors.Is(err, domainbooking.ErrBookingNotFound),
		errors.Is(err, domainlistings.ErrListingNotFound),
		errors.Is(err, domaincalendar.ErrCalendarNotFound),
		errors.Is(err, domainpricing.ErrConfigNotFound),
		errors.Is(err, domainavailability.ErrBlockedDateNotFound):
		return http.StatusNotFound

	case errors.Is(err, domainbooking.ErrDateConflict),
		errors.Is(err, domainbooking.ErrInvalidStateTransition),
		errors.Is(err, domainbooking.ErrConcurrentUpdate),
		errors.Is(err, domainlistings.ErrConcurrentUpdate),
		errors.Is(err, domainlistings.ErrInvalidState),
		errors.Is(err, domaincalendar.ErrConcurrentUpdate),
		errors.Is(err, domaincalendar.ErrCalendarExists),
		errors.Is(err, domaincalendar.ErrSyncInProgress),
		errors.Is(err, middleware.ErrIdempotencyKeyReused):
		return http.StatusConflict

	case errors.Is(err, domainbooking.ErrListingUnavailable),
		errors.Is(err, domainbooking.ErrPetPolicyViolation),
		errors.Is(err, domainbooking.ErrCancellationWindowClosed),
		errors.Is(err, domainbooking.ErrAdultsRequired),
		errors.Is(err, domainlistings.ErrPetsNotAllowed),
		errors.Is(err, domainlistings.ErrTooManyPets),
		errors.Is(err, domainlistings.ErrPetTypeNotAllowed),
		errors.Is(err, domainlistings.ErrGuestsLimit),
		errors.Is(err, domainlistings.ErrOverridesOverlap),
		errors.Is(err, policies.ErrPaymentDeclined):
		return http.StatusUnprocessableEntity

	case errors.Is(err, domaincalendar.ErrUpstreamFetchFailed),
		errors.Is(err, domaincalendar.ErrUpstreamParseFailed):
		return http.StatusBadGateway

	case errors.Is(err, policies.ErrFeedPublishingDisabled):
		return http.StatusServiceUnavailable

	case errors.Is(err, middleware.ErrValidation),
		errors.Is(err, dto.ErrInvalidBookingInput),
		errors.Is(err, daterange.ErrInvalidRange),
		errors.Is(err, domaincalendar.ErrInvalidURL),
		errors.Is(err, domainlistings.ErrUnknownPolicy),
		errors.Is(err, domainlistings.ErrTitleRequired),
		errors.Is(err, domainlistings.ErrNightlyRate),
		errors.Is(err, domainlistings.ErrCurrencyInvalid),
		errors.Is(err, domainlistings.ErrNegativeCharge),
		errors.Is(err, domainpricing.ErrInvalidScope),
		errors.Is(err, domainpricing.ErrScopeIDMissing),
		errors.Is(err, domainpricing.ErrInvalidMode),
		errors.Is(err, domainpricing.ErrNegativeFee),
		errors.Is(err, money.ErrInvalidCurrency),
		errors.Is(err, auth.ErrUnknownRole):
		return http.StatusBadRequest

	case errors.Is(err, commands.ErrHandlerNotFound):
		return http.StatusNotImplemented
	}
	return http.StatusInternalServerError
}

// respondError writes err with its mapped status. Server errors are logged
// here; client errors are left to the access log.
func respondError(c *gin.Context, logger *slog.Logger, err error) {
	status := statusFor(err)
	_ = c.Error(err)
	if status >= http.StatusInternalServerError && logger != nil {
		logger.Error("request failed", "path", c.FullPath(), "status", status, "error", err)
	}
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	c.JSON(status, gin.H{"error": msg})
}
