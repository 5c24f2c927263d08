package handlers

import (
	"net/http"

	"github.com/tradeup/creditengine/internal/app/service/ledger"
	"github.com/tradeup/creditengine/pkg/response"
	"github.com/tradeup/creditengine/pkg/types"

	"github.com/gin-gonic/gin"
)

type ScanLedgerPayload struct {
	Filters   []*types.CommonFilter `json:"filters"`
	From      int                   `json:"from"`
	Size      int                   `json:"size"`
	SortBy    string                `json:"sort_by"`
	SortOrder string                `json:"sort_order"`
}

// @Summary      Scan the credit ledger (Admin)
// @Description  Paginated, filterable listing over all ledger entries for support and reconciliation.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID  header  string  true  "Tenant"
// @Param        request  body  ScanLedgerPayload  true  "Filters"
// @Success      200  {object}  response.APIResponse[ledger.ScanEntriesResponse]
// @Router       /api/v1/admin/ledger/scan [post]
func ApiScanLedger(l *ledger.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant, ok := tenantID(c)
		if !ok {
			return
		}
		var payload ScanLedgerPayload
		if err := c.ShouldBindJSON(&payload); err != nil {
			badRequest(c, err.Error())
			return
		}
		if payload.SortBy == "" {
			payload.SortBy = "created_at"
		}
		if payload.SortOrder != "asc" && payload.SortOrder != "desc" {
			payload.SortOrder = "desc"
		}
		res, err := l.ScanEntries(c.Request.Context(), &ledger.ScanEntriesRequest{
			TenantID:  tenant,
			Filters:   payload.Filters,
			From:      payload.From,
			Size:      payload.Size,
			SortBy:    payload.SortBy,
			SortOrder: payload.SortOrder,
		})
		if err != nil {
			serverError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

func RegisterAdminRoutes(r gin.IRouter, l *ledger.Service) {
	r.POST("/ledger/scan", ApiScanLedger(l))
}
