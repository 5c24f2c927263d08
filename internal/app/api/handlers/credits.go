package handlers

import (
	"net/http"
	"time"

	"github.com/tradeup/creditengine/internal/app/service/ledger"
	"github.com/tradeup/creditengine/internal/models"
	"github.com/tradeup/creditengine/pkg/response"
	"github.com/tradeup/creditengine/pkg/tool"
	"github.com/tradeup/creditengine/pkg/types"

	"github.com/gin-gonic/gin"
)

type ManualCreditPayload struct {
	MemberID    string `json:"member_id" binding:"required"`
	AmountCents int64  `json:"amount_cents" binding:"required"`
	Reason      string `json:"reason"`
	// IdempotencyKey lets staff tooling retry safely. Generated when
	// absent, making the request single-shot.
	IdempotencyKey string `json:"idempotency_key"`
}

func manualRequest(tenant string, payload *ManualCreditPayload, event types.CreditEventType) *ledger.Request {
	key := payload.IdempotencyKey
	if key == "" {
		key = "manual:" + tool.GenerateUUIDV7()
	}
	return &ledger.Request{
		TenantID:       tenant,
		MemberID:       payload.MemberID,
		AmountCents:    payload.AmountCents,
		EventType:      event,
		SourceType:     "manual",
		SourceID:       payload.Reason,
		IdempotencyKey: key,
	}
}

// @Summary      Manually add store credit
// @Tags         Credits
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID  header  string  true  "Tenant"
// @Param        request  body  ManualCreditPayload  true  "Credit"
// @Success      200  {object}  response.APIResponse[ledger.Result]
// @Router       /api/v1/credits/credit [post]
func ApiAddCredit(l *ledger.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant, ok := tenantID(c)
		if !ok {
			return
		}
		var payload ManualCreditPayload
		if err := c.ShouldBindJSON(&payload); err != nil {
			badRequest(c, err.Error())
			return
		}
		res, err := l.Credit(c.Request.Context(), manualRequest(tenant, &payload, types.CreditEventManualAdd))
		if err != nil {
			serverError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      Manually deduct store credit
// @Description  Fails without writing when the member's balance is insufficient.
// @Tags         Credits
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID  header  string  true  "Tenant"
// @Param        request  body  ManualCreditPayload  true  "Deduction"
// @Success      200  {object}  response.APIResponse[ledger.Result]
// @Router       /api/v1/credits/debit [post]
func ApiDeductCredit(l *ledger.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant, ok := tenantID(c)
		if !ok {
			return
		}
		var payload ManualCreditPayload
		if err := c.ShouldBindJSON(&payload); err != nil {
			badRequest(c, err.Error())
			return
		}
		res, err := l.Debit(c.Request.Context(), manualRequest(tenant, &payload, types.CreditEventManualDeduct))
		if err != nil {
			serverError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

func ApiListBonuses(l *ledger.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant, ok := tenantID(c)
		if !ok {
			return
		}
		req := &ledger.ListBonusesRequest{
			TenantID:  tenant,
			MemberID:  c.Query("member_id"),
			EventType: types.CreditEventType(c.Query("event_type")),
			Limit:     queryInt(c, "size", 20),
			Offset:    queryInt(c, "from", 0),
		}
		if v := c.Query("since"); v != "" {
			since, err := time.Parse(time.RFC3339, v)
			if err != nil {
				badRequest(c, "since must be RFC3339")
				return
			}
			req.Since = &since
		}
		rows, total, err := l.ListBonuses(c.Request.Context(), req)
		if err != nil {
			serverError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(pagedResponse[*models.StoreCreditLedgerEntry]{Items: rows, Total: total}))
	}
}

func ApiBonusStats(l *ledger.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant, ok := tenantID(c)
		if !ok {
			return
		}
		stats, err := l.GetBonusStats(c.Request.Context(), tenant)
		if err != nil {
			serverError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(stats))
	}
}

// @Summary      Retry syncing unsynced credits to Shopify
// @Tags         Credits
// @Produce      json
// @Param        X-Tenant-ID  header  string  true  "Tenant"
// @Success      200  {object}  response.APIResponse[ledger.SyncResult]
// @Router       /api/v1/bonuses/sync [post]
func ApiSyncBonuses(l *ledger.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant, ok := tenantID(c)
		if !ok {
			return
		}
		res, err := l.SyncUnsynced(c.Request.Context(), tenant, queryInt(c, "limit", 50))
		if err != nil {
			serverError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

type MarkSyncedPayload struct {
	ShopifyCreditID string `json:"shopify_credit_id"`
}

// @Summary      Mark a single ledger entry as synced
// @Description  Records the Shopify credit id after an out-of-band reconciliation.
// @Tags         Credits
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID  header  string  true  "Tenant"
// @Param        id  path  string  true  "Entry id"
// @Param        request  body  MarkSyncedPayload  false  "Credit reference"
// @Success      200  {object}  response.APIResponse[models.StoreCreditLedgerEntry]
// @Router       /api/v1/bonuses/{id}/sync [post]
func ApiMarkBonusSynced(l *ledger.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant, ok := tenantID(c)
		if !ok {
			return
		}
		var payload MarkSyncedPayload
		if err := c.ShouldBindJSON(&payload); err != nil && c.Request.ContentLength > 0 {
			badRequest(c, err.Error())
			return
		}
		entry, err := l.SyncEntry(c.Request.Context(), tenant, c.Param("id"), payload.ShopifyCreditID)
		if err != nil {
			serverError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(entry))
	}
}

func RegisterCreditRoutes(r gin.IRouter, l *ledger.Service) {
	r.POST("/credits/credit", ApiAddCredit(l))
	r.POST("/credits/debit", ApiDeductCredit(l))
	r.GET("/bonuses", ApiListBonuses(l))
	r.GET("/bonuses/stats", ApiBonusStats(l))
	r.POST("/bonuses/sync", ApiSyncBonuses(l))
	r.POST("/bonuses/:id/sync", ApiMarkBonusSynced(l))
}
