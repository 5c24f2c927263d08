package handlers

import (
	"net/http"
	"time"

	"github.com/tradeup/creditengine/internal/app/service/distribution"
	"github.com/tradeup/creditengine/internal/models"
	"github.com/tradeup/creditengine/pkg/response"
	"github.com/tradeup/creditengine/pkg/types"

	"github.com/gin-gonic/gin"
)

type CreateMonthlyPayload struct {
	// Period in "2006-01" form; defaults to the current month.
	Period string `json:"period"`
	// AutoApprove lets the creation path immediately approve when the
	// tenant's settings allow it.
	AutoApprove bool `json:"auto_approve"`
}

// @Summary      Create this period's monthly credit distribution
// @Tags         Distributions
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID  header  string  true  "Tenant"
// @Param        request  body  CreateMonthlyPayload  false  "Options"
// @Success      200  {object}  response.APIResponse[models.PendingDistribution]
// @Router       /api/v1/distributions [post]
func ApiCreateMonthlyDistribution(w *distribution.Workflow) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant, ok := tenantID(c)
		if !ok {
			return
		}
		var payload CreateMonthlyPayload
		if err := c.ShouldBindJSON(&payload); err != nil && c.Request.ContentLength > 0 {
			badRequest(c, err.Error())
			return
		}
		period := time.Now()
		if payload.Period != "" {
			parsed, err := time.Parse("2006-01", payload.Period)
			if err != nil {
				badRequest(c, "period must be YYYY-MM")
				return
			}
			period = parsed
		}

		dist, err := w.CreateMonthly(c.Request.Context(), tenant, period)
		if err != nil {
			serverError(c, err)
			return
		}
		if payload.AutoApprove {
			if dist, err = w.MaybeAutoApprove(c.Request.Context(), dist); err != nil {
				serverError(c, err)
				return
			}
		}
		c.JSON(http.StatusOK, response.OKT(dist))
	}
}

func ApiListDistributions(w *distribution.Workflow) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant, ok := tenantID(c)
		if !ok {
			return
		}
		rows, total, err := w.List(c.Request.Context(), &distribution.ListRequest{
			TenantID: tenant,
			Status:   types.DistributionStatus(c.Query("status")),
			Limit:    queryInt(c, "size", 20),
			Offset:   queryInt(c, "from", 0),
		})
		if err != nil {
			serverError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(pagedResponse[*models.PendingDistribution]{Items: rows, Total: total}))
	}
}

func ApiGetDistribution(w *distribution.Workflow) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant, ok := tenantID(c)
		if !ok {
			return
		}
		dist, err := w.Get(c.Request.Context(), tenant, c.Param("id"))
		if err != nil {
			serverError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(dist))
	}
}

type ApprovalPayload struct {
	ActorEmail string `json:"actor_email" binding:"required"`
	Reason     string `json:"reason"`
}

// @Summary      Approve a pending distribution
// @Description  Queues background execution. Expired distributions can no longer be approved.
// @Tags         Distributions
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID  header  string  true  "Tenant"
// @Param        id  path  string  true  "Distribution id"
// @Param        request  body  ApprovalPayload  true  "Approver"
// @Success      200  {object}  response.APIResponse[models.PendingDistribution]
// @Router       /api/v1/distributions/{id}/approve [post]
func ApiApproveDistribution(w *distribution.Workflow) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant, ok := tenantID(c)
		if !ok {
			return
		}
		var payload ApprovalPayload
		if err := c.ShouldBindJSON(&payload); err != nil {
			badRequest(c, err.Error())
			return
		}
		dist, err := w.Approve(c.Request.Context(), tenant, c.Param("id"), payload.ActorEmail)
		if err != nil {
			serverError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(dist))
	}
}

func ApiRejectDistribution(w *distribution.Workflow) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant, ok := tenantID(c)
		if !ok {
			return
		}
		var payload ApprovalPayload
		if err := c.ShouldBindJSON(&payload); err != nil {
			badRequest(c, err.Error())
			return
		}
		dist, err := w.Reject(c.Request.Context(), tenant, c.Param("id"), payload.ActorEmail, payload.Reason)
		if err != nil {
			serverError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(dist))
	}
}

func ApiGetSettings(w *distribution.Workflow) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant, ok := tenantID(c)
		if !ok {
			return
		}
		settings, err := w.Settings(c.Request.Context(), tenant)
		if err != nil {
			serverError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(settings))
	}
}

type AutoApprovePayload struct {
	Enabled bool `json:"enabled"`
}

func ApiSetAutoApprove(w *distribution.Workflow) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant, ok := tenantID(c)
		if !ok {
			return
		}
		var payload AutoApprovePayload
		if err := c.ShouldBindJSON(&payload); err != nil {
			badRequest(c, err.Error())
			return
		}
		settings, err := w.SetAutoApprove(c.Request.Context(), tenant, payload.Enabled)
		if err != nil {
			serverError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(settings))
	}
}

func RegisterDistributionRoutes(r gin.IRouter, w *distribution.Workflow) {
	r.POST("/distributions", ApiCreateMonthlyDistribution(w))
	r.GET("/distributions", ApiListDistributions(w))
	r.GET("/distributions/settings/auto-approve", ApiGetSettings(w))
	r.PUT("/distributions/settings/auto-approve", ApiSetAutoApprove(w))
	r.GET("/distributions/:id", ApiGetDistribution(w))
	r.POST("/distributions/:id/approve", ApiApproveDistribution(w))
	r.POST("/distributions/:id/reject", ApiRejectDistribution(w))
}
