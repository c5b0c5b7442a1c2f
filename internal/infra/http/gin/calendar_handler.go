package ginserver

import (
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"staybook/internal/app/commands"
	"staybook/internal/app/dto"
	calendarapp "staybook/internal/app/handlers/calendar"
	"staybook/internal/app/queries"
)

const icsContentType = "text/calendar; charset=utf-8"

type CalendarHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
	Logger   *slog.Logger
}

type addCalendarRequest struct {
	URL  string `json:"url"`
	Name string `json:"name"`
}

func (h CalendarHandler) Add(c *gin.Context) {
	if _, ok := requireActor(c); !ok {
		return
	}
	var req addCalendarRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cmd := calendarapp.AddCalendarCommand{ListingID: c.Param("id"), URL: req.URL, Name: req.Name}
	result, err := commands.Dispatch[calendarapp.AddCalendarCommand, *dto.ListingCalendar](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h CalendarHandler) List(c *gin.Context) {
	if _, ok := requireActor(c); !ok {
		return
	}
	q := calendarapp.ListCalendarsQuery{ListingID: c.Param("id")}
	result, err := queries.Ask[calendarapp.ListCalendarsQuery, dto.ListingCalendarCollection](c.Request.Context(), h.Queries, q)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h CalendarHandler) Remove(c *gin.Context) {
	if _, ok := requireActor(c); !ok {
		return
	}
	cmd := calendarapp.RemoveCalendarCommand{CalendarID: c.Param("calendarID")}
	result, err := commands.Dispatch[calendarapp.RemoveCalendarCommand, *dto.SyncResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Sync imports one subscription now. A failed import is still recorded on
// the subscription before the error is returned.
func (h CalendarHandler) Sync(c *gin.Context) {
	if _, ok := requireActor(c); !ok {
		return
	}
	cmd := calendarapp.SyncCalendarCommand{CalendarID: c.Param("calendarID")}
	result, err := commands.Dispatch[calendarapp.SyncCalendarCommand, *dto.SyncResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h CalendarHandler) SyncAll(c *gin.Context) {
	if _, ok := requireActor(c); !ok {
		return
	}
	cmd := calendarapp.SyncListingCalendarsCommand{ListingID: c.Param("id")}
	result, err := commands.Dispatch[calendarapp.SyncListingCalendarsCommand, *dto.SyncAllResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Export serves the listing feed that external providers subscribe to.
func (h CalendarHandler) Export(c *gin.Context) {
	q := calendarapp.ExportListingICSQuery{ListingID: c.Param("id")}
	result, err := queries.Ask[calendarapp.ExportListingICSQuery, *dto.CalendarExport](c.Request.Context(), h.Queries, q)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.Header("Content-Disposition", `inline; filename="`+result.ListingID+`.ics"`)
	c.Data(http.StatusOK, icsContentType, result.Data)
}

func (h CalendarHandler) Publish(c *gin.Context) {
	if _, ok := requireActor(c); !ok {
		return
	}
	cmd := calendarapp.PublishListingFeedCommand{ListingID: c.Param("id")}
	result, err := commands.Dispatch[calendarapp.PublishListingFeedCommand, *dto.PublishedFeed](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
