package handlers

import (
	"net/http"
	"strconv"

	"github.com/tradeup/creditengine/pkg/response"

	"github.com/gin-gonic/gin"
)

const tenantHeader = "X-Tenant-ID"

// tenantID extracts the tenant from the request header. Every business
// route is tenant-scoped; a missing header short-circuits the handler.
func tenantID(c *gin.Context) (string, bool) {
	id := c.GetHeader(tenantHeader)
	if id == "" {
		c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, "missing "+tenantHeader+" header"))
		return "", false
	}
	return id, true
}

func queryInt(c *gin.Context, key string, def int) int {
	if v := c.Query(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return def
}

type pagedResponse[T any] struct {
	Items []T   `json:"items"`
	Total int64 `json:"total"`
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, msg))
}

func serverError(c *gin.Context, err error) {
	c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
}
