package handlers

import (
	"net/http"

	"github.com/tradeup/creditengine/internal/app/service/distribution"
	"github.com/tradeup/creditengine/internal/models"
	"github.com/tradeup/creditengine/pkg/response"

	"github.com/gin-gonic/gin"
)

type CreateBulkPayload struct {
	AmountPerMemberCents int64   `json:"amount_per_member_cents" binding:"required"`
	TierFilter           *string `json:"tier_filter"`
	CreatedBy            string  `json:"created_by"`
}

// @Summary      Create a bulk credit operation
// @Description  Freezes the eligible member count and total at creation time.
// @Tags         BulkCredits
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID  header  string  true  "Tenant"
// @Param        request  body  CreateBulkPayload  true  "Operation"
// @Success      200  {object}  response.APIResponse[models.BulkCreditOperation]
// @Router       /api/v1/bulk-operations [post]
func ApiCreateBulkOperation(b *distribution.Bulk) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant, ok := tenantID(c)
		if !ok {
			return
		}
		var payload CreateBulkPayload
		if err := c.ShouldBindJSON(&payload); err != nil {
			badRequest(c, err.Error())
			return
		}
		op, err := b.Create(c.Request.Context(), &distribution.CreateBulkRequest{
			TenantID:             tenant,
			AmountPerMemberCents: payload.AmountPerMemberCents,
			TierFilter:           payload.TierFilter,
			CreatedBy:            payload.CreatedBy,
		})
		if err != nil {
			serverError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(op))
	}
}

func ApiListBulkOperations(b *distribution.Bulk) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant, ok := tenantID(c)
		if !ok {
			return
		}
		rows, total, err := b.List(c.Request.Context(), tenant, queryInt(c, "size", 20), queryInt(c, "from", 0))
		if err != nil {
			serverError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(pagedResponse[*models.BulkCreditOperation]{Items: rows, Total: total}))
	}
}

func ApiGetBulkOperation(b *distribution.Bulk) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant, ok := tenantID(c)
		if !ok {
			return
		}
		op, err := b.Get(c.Request.Context(), tenant, c.Param("id"))
		if err != nil {
			serverError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(op))
	}
}

// @Summary      Execute a bulk credit operation
// @Description  Re-validates the member set against the frozen preview and fails atomically on drift.
// @Tags         BulkCredits
// @Produce      json
// @Param        X-Tenant-ID  header  string  true  "Tenant"
// @Param        id  path  string  true  "Operation id"
// @Success      200  {object}  response.APIResponse[models.BulkCreditOperation]
// @Router       /api/v1/bulk-operations/{id}/execute [post]
func ApiExecuteBulkOperation(b *distribution.Bulk) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant, ok := tenantID(c)
		if !ok {
			return
		}
		op, err := b.Execute(c.Request.Context(), tenant, c.Param("id"))
		if err != nil {
			serverError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(op))
	}
}

func RegisterBulkRoutes(r gin.IRouter, b *distribution.Bulk) {
	r.POST("/bulk-operations", ApiCreateBulkOperation(b))
	r.GET("/bulk-operations", ApiListBulkOperations(b))
	r.GET("/bulk-operations/:id", ApiGetBulkOperation(b))
	r.POST("/bulk-operations/:id/execute", ApiExecuteBulkOperation(b))
}
