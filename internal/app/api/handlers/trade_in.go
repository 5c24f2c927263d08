package handlers

import (
	"net/http"

	"github.com/tradeup/creditengine/internal/app/service/payout"
	"github.com/tradeup/creditengine/internal/app/service/tradein"
	"github.com/tradeup/creditengine/internal/models"
	"github.com/tradeup/creditengine/pkg/response"
	"github.com/tradeup/creditengine/pkg/types"

	"github.com/gin-gonic/gin"
)

type CreateTradeInPayload struct {
	MemberID string        `json:"member_id" binding:"required"`
	Category string        `json:"category"`
	Notes    string        `json:"notes"`
	Items    []payout.Item `json:"items" binding:"required"`
}

// @Summary      Create a trade-in batch
// @Tags         TradeIns
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID  header  string  true  "Tenant"
// @Param        request  body  CreateTradeInPayload  true  "Batch"
// @Success      200  {object}  response.APIResponse[models.TradeInBatch]
// @Router       /api/v1/trade-ins [post]
func ApiCreateTradeIn(svc *tradein.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant, ok := tenantID(c)
		if !ok {
			return
		}
		var payload CreateTradeInPayload
		if err := c.ShouldBindJSON(&payload); err != nil {
			badRequest(c, err.Error())
			return
		}
		batch, err := svc.Create(c.Request.Context(), &tradein.CreateRequest{
			TenantID: tenant,
			MemberID: payload.MemberID,
			Category: payload.Category,
			Notes:    payload.Notes,
			Items:    payload.Items,
		})
		if err != nil {
			serverError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(batch))
	}
}

func ApiListTradeIns(svc *tradein.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant, ok := tenantID(c)
		if !ok {
			return
		}
		rows, total, err := svc.List(c.Request.Context(), &tradein.ListRequest{
			TenantID: tenant,
			MemberID: c.Query("member_id"),
			Status:   types.BatchStatus(c.Query("status")),
			Limit:    queryInt(c, "size", 20),
			Offset:   queryInt(c, "from", 0),
		})
		if err != nil {
			serverError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(pagedResponse[*models.TradeInBatch]{Items: rows, Total: total}))
	}
}

func ApiGetTradeIn(svc *tradein.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant, ok := tenantID(c)
		if !ok {
			return
		}
		batch, err := svc.Get(c.Request.Context(), tenant, c.Param("id"))
		if err != nil {
			serverError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(batch))
	}
}

type ReplaceItemsPayload struct {
	Items []payout.Item `json:"items" binding:"required"`
}

func ApiReplaceTradeInItems(svc *tradein.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant, ok := tenantID(c)
		if !ok {
			return
		}
		var payload ReplaceItemsPayload
		if err := c.ShouldBindJSON(&payload); err != nil {
			badRequest(c, err.Error())
			return
		}
		batch, err := svc.ReplaceItems(c.Request.Context(), tenant, c.Param("id"), payload.Items)
		if err != nil {
			serverError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(batch))
	}
}

type UpdateTradeInStatusPayload struct {
	Status string `json:"status" binding:"required"`
}

func ApiUpdateTradeInStatus(svc *tradein.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant, ok := tenantID(c)
		if !ok {
			return
		}
		var payload UpdateTradeInStatusPayload
		if err := c.ShouldBindJSON(&payload); err != nil {
			badRequest(c, err.Error())
			return
		}
		batch, err := svc.UpdateStatus(c.Request.Context(), tenant, c.Param("id"), types.BatchStatus(payload.Status))
		if err != nil {
			serverError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(batch))
	}
}

func channelOf(c *gin.Context) types.Channel {
	ch := types.Channel(c.Query("channel"))
	if ch == "" {
		ch = types.ChannelInStore
	}
	return ch
}

func ApiPreviewTradeIn(svc *tradein.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant, ok := tenantID(c)
		if !ok {
			return
		}
		res, err := svc.Preview(c.Request.Context(), tenant, c.Param("id"), channelOf(c))
		if err != nil {
			serverError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      Complete a trade-in batch and credit the member
// @Description  Credits the payout and any promotion bonuses exactly once. Completing an already completed batch replays the stored outcome.
// @Tags         TradeIns
// @Produce      json
// @Param        X-Tenant-ID  header  string  true  "Tenant"
// @Param        id  path  string  true  "Batch id"
// @Success      200  {object}  response.APIResponse[tradein.CompleteResult]
// @Router       /api/v1/trade-ins/{id}/complete [post]
func ApiCompleteTradeIn(svc *tradein.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant, ok := tenantID(c)
		if !ok {
			return
		}
		res, err := svc.Complete(c.Request.Context(), tenant, c.Param("id"), channelOf(c))
		if err != nil {
			serverError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

func RegisterTradeInRoutes(r gin.IRouter, svc *tradein.Service) {
	r.POST("/trade-ins", ApiCreateTradeIn(svc))
	r.GET("/trade-ins", ApiListTradeIns(svc))
	r.GET("/trade-ins/:id", ApiGetTradeIn(svc))
	r.POST("/trade-ins/:id/items", ApiReplaceTradeInItems(svc))
	r.POST("/trade-ins/:id/status", ApiUpdateTradeInStatus(svc))
	r.GET("/trade-ins/:id/preview", ApiPreviewTradeIn(svc))
	r.POST("/trade-ins/:id/complete", ApiCompleteTradeIn(svc))
}
