package handlers

import (
	"net/http"
	"time"

	"github.com/tradeup/creditengine/internal/app/service/promotion"
	"github.com/tradeup/creditengine/internal/models"
	"github.com/tradeup/creditengine/pkg/response"
	"github.com/tradeup/creditengine/pkg/types"

	"github.com/gin-gonic/gin"
)

func ApiCreatePromotion(svc *promotion.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant, ok := tenantID(c)
		if !ok {
			return
		}
		var p models.Promotion
		if err := c.ShouldBindJSON(&p); err != nil {
			badRequest(c, err.Error())
			return
		}
		p.TenantID = tenant
		created, err := svc.Create(c.Request.Context(), &p)
		if err != nil {
			serverError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(created))
	}
}

func ApiListPromotions(svc *promotion.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant, ok := tenantID(c)
		if !ok {
			return
		}
		rows, total, err := svc.List(c.Request.Context(), &promotion.ListRequest{
			TenantID:   tenant,
			ActiveOnly: c.Query("active") == "true",
			Limit:      queryInt(c, "size", 20),
			Offset:     queryInt(c, "from", 0),
		})
		if err != nil {
			serverError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(pagedResponse[*models.Promotion]{Items: rows, Total: total}))
	}
}

func ApiGetPromotion(svc *promotion.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant, ok := tenantID(c)
		if !ok {
			return
		}
		p, err := svc.Get(c.Request.Context(), tenant, c.Param("id"))
		if err != nil {
			serverError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(p))
	}
}

func ApiUpdatePromotion(svc *promotion.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant, ok := tenantID(c)
		if !ok {
			return
		}
		var p models.Promotion
		if err := c.ShouldBindJSON(&p); err != nil {
			badRequest(c, err.Error())
			return
		}
		updated, err := svc.Update(c.Request.Context(), tenant, c.Param("id"), &p)
		if err != nil {
			serverError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(updated))
	}
}

type PromotionPreviewPayload struct {
	MemberID    string   `json:"member_id"`
	MemberTier  string   `json:"member_tier"`
	Channel     string   `json:"channel"`
	CategoryIDs []string `json:"category_ids"`
	ValueCents  int64    `json:"value_cents"`
	ItemCount   int      `json:"item_count"`
}

// @Summary      Preview promotion eligibility for a sample transaction
// @Tags         Promotions
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID  header  string  true  "Tenant"
// @Param        request  body  PromotionPreviewPayload  true  "Sample transaction"
// @Success      200  {object}  response.APIResponse[promotion.PreviewResult]
// @Router       /api/v1/promotions/preview [post]
func ApiPreviewPromotions(svc *promotion.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant, ok := tenantID(c)
		if !ok {
			return
		}
		var payload PromotionPreviewPayload
		if err := c.ShouldBindJSON(&payload); err != nil {
			badRequest(c, err.Error())
			return
		}
		ch := types.Channel(payload.Channel)
		if ch == "" {
			ch = types.ChannelInStore
		}
		res, err := svc.Preview(c.Request.Context(), tenant, promotion.Context{
			Now:         time.Now(),
			Channel:     ch,
			MemberID:    payload.MemberID,
			MemberTier:  payload.MemberTier,
			CategoryIDs: payload.CategoryIDs,
			ValueCents:  payload.ValueCents,
			ItemCount:   payload.ItemCount,
		}, payload.ValueCents)
		if err != nil {
			serverError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

func RegisterPromotionRoutes(r gin.IRouter, svc *promotion.Service) {
	r.POST("/promotions", ApiCreatePromotion(svc))
	r.GET("/promotions", ApiListPromotions(svc))
	r.POST("/promotions/preview", ApiPreviewPromotions(svc))
	r.GET("/promotions/:id", ApiGetPromotion(svc))
	r.PUT("/promotions/:id", ApiUpdatePromotion(svc))
}
