package handlers

import (
	"net/http"

	"github.com/tradeup/creditengine/internal/app/service/ledger"
	"github.com/tradeup/creditengine/internal/app/service/member"
	"github.com/tradeup/creditengine/internal/models"
	"github.com/tradeup/creditengine/pkg/response"
	"github.com/tradeup/creditengine/pkg/types"

	"github.com/gin-gonic/gin"
)

type CreateMemberPayload struct {
	ShopifyCustomerID *string `json:"shopify_customer_id"`
	MemberNumber      string  `json:"member_number"`
	Name              string  `json:"name"`
	Email             string  `json:"email"`
	Tier              string  `json:"tier" binding:"required"`
	EnrollmentSource  string  `json:"enrollment_source"`
}

// @Summary      Enroll a member
// @Tags         Members
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID  header  string  true  "Tenant"
// @Param        request  body  CreateMemberPayload  true  "Member"
// @Success      200  {object}  response.APIResponse[models.Member]
// @Router       /api/v1/members [post]
func ApiCreateMember(svc *member.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant, ok := tenantID(c)
		if !ok {
			return
		}
		var payload CreateMemberPayload
		if err := c.ShouldBindJSON(&payload); err != nil {
			badRequest(c, err.Error())
			return
		}
		m, err := svc.Create(c.Request.Context(), &member.CreateMemberRequest{
			TenantID:          tenant,
			ShopifyCustomerID: payload.ShopifyCustomerID,
			MemberNumber:      payload.MemberNumber,
			Name:              payload.Name,
			Email:             payload.Email,
			Tier:              payload.Tier,
			EnrollmentSource:  types.EnrollmentSource(payload.EnrollmentSource),
		})
		if err != nil {
			serverError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(m))
	}
}

func ApiListMembers(svc *member.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant, ok := tenantID(c)
		if !ok {
			return
		}
		rows, total, err := svc.List(c.Request.Context(), &member.ListMembersRequest{
			TenantID: tenant,
			Tier:     c.Query("tier"),
			Status:   types.MemberStatus(c.Query("status")),
			Limit:    queryInt(c, "size", 20),
			Offset:   queryInt(c, "from", 0),
		})
		if err != nil {
			serverError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(pagedResponse[*models.Member]{Items: rows, Total: total}))
	}
}

func ApiGetMember(svc *member.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant, ok := tenantID(c)
		if !ok {
			return
		}
		m, err := svc.Get(c.Request.Context(), tenant, c.Param("id"))
		if err != nil {
			serverError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(m))
	}
}

type UpdateMemberPayload struct {
	Name   *string `json:"name"`
	Email  *string `json:"email"`
	Tier   *string `json:"tier"`
	Status *string `json:"status"`
}

func ApiUpdateMember(svc *member.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant, ok := tenantID(c)
		if !ok {
			return
		}
		var payload UpdateMemberPayload
		if err := c.ShouldBindJSON(&payload); err != nil {
			badRequest(c, err.Error())
			return
		}
		req := &member.UpdateMemberRequest{Name: payload.Name, Email: payload.Email, Tier: payload.Tier}
		if payload.Status != nil {
			st := types.MemberStatus(*payload.Status)
			req.Status = &st
		}
		m, err := svc.Update(c.Request.Context(), tenant, c.Param("id"), req)
		if err != nil {
			serverError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(m))
	}
}

// @Summary      Get member credit balance
// @Tags         Members
// @Produce      json
// @Param        X-Tenant-ID  header  string  true  "Tenant"
// @Param        id  path  string  true  "Member id"
// @Success      200  {object}  response.APIResponse[models.MemberCreditBalance]
// @Router       /api/v1/members/{id}/balance [get]
func ApiGetMemberBalance(l *ledger.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant, ok := tenantID(c)
		if !ok {
			return
		}
		bal, err := l.GetBalance(c.Request.Context(), tenant, c.Param("id"))
		if err != nil {
			serverError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(bal))
	}
}

func ApiGetMemberHistory(l *ledger.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant, ok := tenantID(c)
		if !ok {
			return
		}
		rows, total, err := l.GetHistory(c.Request.Context(), &ledger.HistoryRequest{
			TenantID: tenant,
			MemberID: c.Param("id"),
			Limit:    queryInt(c, "size", 20),
			Offset:   queryInt(c, "from", 0),
		})
		if err != nil {
			serverError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(pagedResponse[*models.StoreCreditLedgerEntry]{Items: rows, Total: total}))
	}
}

func ApiCreateTier(svc *member.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant, ok := tenantID(c)
		if !ok {
			return
		}
		var tier models.TierConfiguration
		if err := c.ShouldBindJSON(&tier); err != nil {
			badRequest(c, err.Error())
			return
		}
		tier.TenantID = tenant
		created, err := svc.CreateTier(c.Request.Context(), &tier)
		if err != nil {
			serverError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(created))
	}
}

func ApiListTiers(svc *member.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant, ok := tenantID(c)
		if !ok {
			return
		}
		rows, err := svc.ListTiers(c.Request.Context(), tenant, c.Query("active") == "true")
		if err != nil {
			serverError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(rows))
	}
}

func ApiUpdateTier(svc *member.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant, ok := tenantID(c)
		if !ok {
			return
		}
		var tier models.TierConfiguration
		if err := c.ShouldBindJSON(&tier); err != nil {
			badRequest(c, err.Error())
			return
		}
		updated, err := svc.UpdateTier(c.Request.Context(), tenant, c.Param("id"), &tier)
		if err != nil {
			serverError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(updated))
	}
}

func RegisterMemberRoutes(r gin.IRouter, svc *member.Service, l *ledger.Service) {
	r.POST("/members", ApiCreateMember(svc))
	r.GET("/members", ApiListMembers(svc))
	r.GET("/members/:id", ApiGetMember(svc))
	r.PATCH("/members/:id", ApiUpdateMember(svc))
	r.GET("/members/:id/balance", ApiGetMemberBalance(l))
	r.GET("/members/:id/history", ApiGetMemberHistory(l))

	r.POST("/tiers", ApiCreateTier(svc))
	r.GET("/tiers", ApiListTiers(svc))
	r.PUT("/tiers/:id", ApiUpdateTier(svc))
}
