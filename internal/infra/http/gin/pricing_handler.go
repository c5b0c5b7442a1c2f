package ginserver

import (
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"staybook/internal/app/commands"
	"staybook/internal/app/dto"
	pricingapp "staybook/internal/app/handlers/pricing"
	"staybook/internal/app/queries"
)

type PricingHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
	Logger   *slog.Logger
}

// Upsert handles PUT /pricing/:scope and /pricing/:scope/:scopeID.
func (h PricingHandler) Upsert(c *gin.Context) {
	if _, ok := requireActor(c); !ok {
		return
	}
	var cfg dto.PricingConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cmd := pricingapp.UpsertPricingConfigCommand{Scope: c.Param("scope"), ScopeID: c.Param("scopeID"), Config: cfg}
	result, err := commands.Dispatch[pricingapp.UpsertPricingConfigCommand, *dto.PricingConfig](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h PricingHandler) Get(c *gin.Context) {
	if _, ok := requireActor(c); !ok {
		return
	}
	q := pricingapp.GetPricingConfigQuery{Scope: c.Param("scope"), ScopeID: c.Param("scopeID")}
	result, err := queries.Ask[pricingapp.GetPricingConfigQuery, dto.PricingConfig](c.Request.Context(), h.Queries, q)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Effective returns the merged fee schedule of one listing.
func (h PricingHandler) Effective(c *gin.Context) {
	q := pricingapp.GetEffectivePricingQuery{ListingID: c.Param("id")}
	result, err := queries.Ask[pricingapp.GetEffectivePricingQuery, dto.EffectivePricing](c.Request.Context(), h.Queries, q)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
