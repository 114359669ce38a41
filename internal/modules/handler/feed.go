package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/devlog-hq/devlog/internal/middleware"
	"github.com/devlog-hq/devlog/internal/modules/serializer"
	"github.com/devlog-hq/devlog/internal/modules/service"
)

type FeedHandler struct {
	feed service.FeedService
}

func NewFeedHandler(s service.FeedService) *FeedHandler {
	return &FeedHandler{feed: s}
}

func (h *FeedHandler) Dashboard(c *gin.Context) {
	out, err := h.feed.Dashboard(c.Request.Context(), middleware.CurrentUser(c))
	if err != nil {
		serializer.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, serializer.Response{Data: out})
}
