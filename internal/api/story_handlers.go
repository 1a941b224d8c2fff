package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"storyweaver/internal/model"
	"storyweaver/internal/store"
)

// handleCreateStory 规划完成后返回 201，插画在后台继续
func handleCreateStory(gen Generator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var settings model.StorySettings
		if err := c.ShouldBindJSON(&settings); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		story, err := gen.CreateStory(c.Request.Context(), settings)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusCreated, story)
	}
}

func handleListStories(lib *store.Library) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, lib.List())
	}
}

func handleGetStory(lib *store.Library) gin.HandlerFunc {
	return func(c *gin.Context) {
		story, err := lib.Get(c.Param("id"))
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, story)
	}
}

func handleEditStory(lib *store.Library) gin.HandlerFunc {
	return func(c *gin.Context) {
		var patch store.Patch
		if err := c.ShouldBindJSON(&patch); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		story, err := lib.Edit(c.Request.Context(), c.Param("id"), patch)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, story)
	}
}

func handleDeleteStory(lib *store.Library) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := lib.Delete(c.Request.Context(), c.Param("id")); err != nil {
			abortWithError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// handleRegeneratePage 页序号从0开始
func handleRegeneratePage(gen Generator) gin.HandlerFunc {
	return func(c *gin.Context) {
		index, err := strconv.Atoi(c.Param("index"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "page index must be an integer"})
			return
		}
		story, err := gen.RegeneratePageImage(c.Request.Context(), c.Param("id"), index)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, story)
	}
}

func handleGetActive(lib *store.Library) gin.HandlerFunc {
	return func(c *gin.Context) {
		story, ok := lib.Active()
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "no active story"})
			return
		}
		c.JSON(http.StatusOK, story)
	}
}

func handleOpenStory(lib *store.Library) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			StoryID string `json:"storyId" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "storyId required"})
			return
		}
		story, err := lib.Open(req.StoryID)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, story)
	}
}

func handleCloseStory(lib *store.Library) gin.HandlerFunc {
	return func(c *gin.Context) {
		lib.Close()
		c.Status(http.StatusNoContent)
	}
}

func handleStats(lib *store.Library) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, lib.Stats())
	}
}
