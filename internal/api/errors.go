package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"storyweaver/internal/model"
	"storyweaver/internal/service"
	"storyweaver/internal/store"
	"storyweaver/internal/tools"
)

func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrInvalidSettings),
		errors.Is(err, store.ErrPageOutOfRange),
		errors.Is(err, store.ErrInvalidPatch),
		errors.Is(err, tools.ErrInvalidArguments):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrStoryNotFound),
		errors.Is(err, tools.ErrUnknownTool):
		return http.StatusNotFound
	case errors.Is(err, service.ErrPlanningFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func abortWithError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(statusFor(err), gin.H{"error": err.Error()})
}
