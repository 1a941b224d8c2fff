package api

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"storyweaver/internal/tools"
)

func handleToolInfos(reg *tools.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, reg.Infos())
	}
}

// handleToolRun 请求体原样作为工具参数
func handleToolRun(reg *tools.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil || len(body) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		result, err := reg.Run(c.Request.Context(), c.Param("name"), string(body))
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.Data(http.StatusOK, "application/json", []byte(result))
	}
}
