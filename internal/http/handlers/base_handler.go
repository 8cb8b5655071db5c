// README: Base handler utilities (JSON helpers, error mapping).
package handlers

import "github.com/gin-gonic/gin"

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

func orgIDQuery(c *gin.Context, defaultOrg string) string {
	if v := c.Query("org_id"); v != "" {
		return v
	}
	return defaultOrg
}
