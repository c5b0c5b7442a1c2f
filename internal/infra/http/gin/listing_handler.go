package ginserver

import (
	"fmt"
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"staybook/internal/app/commands"
	"staybook/internal/app/dto"
	listingapp "staybook/internal/app/handlers/listings"
	"staybook/internal/app/queries"
)

type ListingHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
	Logger   *slog.Logger
}

type createListingRequest struct {
	dto.ListingInput
	HostID string `json:"host_id"`
}

func (h ListingHandler) Create(c *gin.Context) {
	if _, ok := requireActor(c); !ok {
		return
	}
	var req createListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cmd := listingapp.CreateListingCommand{HostID: req.HostID, Payload: req.ListingInput}
	result, err := commands.Dispatch[listingapp.CreateListingCommand, *dto.Listing](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.Header("Location", fmt.Sprintf("/api/v1/listings/%s", result.ID))
	c.JSON(http.StatusCreated, result)
}

// Get serves active listings to anyone, drafts only to their host.
func (h ListingHandler) Get(c *gin.Context) {
	result, err := queries.Ask[listingapp.GetListingQuery, dto.Listing](c.Request.Context(), h.Queries, listingapp.GetListingQuery{ListingID: c.Param("id")})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h ListingHandler) Update(c *gin.Context) {
	if _, ok := requireActor(c); !ok {
		return
	}
	var payload dto.ListingInput
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cmd := listingapp.UpdateListingCommand{ListingID: c.Param("id"), Payload: payload}
	result, err := commands.Dispatch[listingapp.UpdateListingCommand, *dto.Listing](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h ListingHandler) Activate(c *gin.Context) {
	h.changeState(c, true)
}

func (h ListingHandler) Deactivate(c *gin.Context) {
	h.changeState(c, false)
}

type stateRequest struct {
	Reason string `json:"reason"`
}

func (h ListingHandler) changeState(c *gin.Context, activate bool) {
	if _, ok := requireActor(c); !ok {
		return
	}
	var req stateRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	cmd := listingapp.ChangeListingStateCommand{ListingID: c.Param("id"), Activate: activate, Reason: req.Reason}
	result, err := commands.Dispatch[listingapp.ChangeListingStateCommand, *dto.Listing](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type overridesRequest struct {
	Periods []listingapp.OverridePeriodInput `json:"periods"`
}

// ReplaceOverrides swaps the whole set of override periods.
func (h ListingHandler) ReplaceOverrides(c *gin.Context) {
	if _, ok := requireActor(c); !ok {
		return
	}
	var req overridesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cmd := listingapp.ReplaceOverridesCommand{ListingID: c.Param("id"), Periods: req.Periods}
	result, err := commands.Dispatch[listingapp.ReplaceOverridesCommand, *dto.Listing](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ListHost lists the listings of the caller, or of ?host_id= for admins.
func (h ListingHandler) ListHost(c *gin.Context) {
	if _, ok := requireActor(c); !ok {
		return
	}
	q := listingapp.ListHostListingsQuery{HostID: c.Query("host_id")}
	result, err := queries.Ask[listingapp.ListHostListingsQuery, dto.ListingCollection](c.Request.Context(), h.Queries, q)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
