package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/devlog-hq/devlog/internal/middleware"
	"github.com/devlog-hq/devlog/internal/modules/model"
	"github.com/devlog-hq/devlog/internal/modules/serializer"
	"github.com/devlog-hq/devlog/internal/modules/service"
)

const forumOwnerKey = "forum_owner"

type ForumHandler struct {
	forums service.ForumService
}

func NewForumHandler(forums service.ForumService) *ForumHandler {
	return &ForumHandler{forums: forums}
}

type ReplyReq struct {
	Content string `json:"content" binding:"required"`
}

// ResolveOwner loads the forum owner named by the :language or :project
// path segment, so the topic routes are shared by both kinds.
func (h *ForumHandler) ResolveOwner(kind, param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		owner, err := h.forums.ResolveOwner(c.Request.Context(), kind, c.Param(param))
		if err != nil {
			serializer.Abort(c, err)
			return
		}
		c.Set(forumOwnerKey, owner)
		c.Next()
	}
}

func ownerFrom(c *gin.Context) model.ForumOwner {
	v, _ := c.Get(forumOwnerKey)
	o, _ := v.(model.ForumOwner)
	return o
}

func (h *ForumHandler) ListLanguages(c *gin.Context) {
	out, err := h.forums.ListLanguages(c.Request.Context())
	if err != nil {
		serializer.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, serializer.Response{Data: out})
}

func (h *ForumHandler) ListTopics(c *gin.Context) {
	page, err := pageFrom(c)
	if err != nil {
		serializer.Abort(c, err)
		return
	}

	out, err := h.forums.ListTopics(c.Request.Context(), ownerFrom(c), c.Param("category"), page)
	if err != nil {
		serializer.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, serializer.Response{Data: out})
}

func (h *ForumHandler) CreateTopic(c *gin.Context) {
	req := service.TopicInput{}
	if err := bindJSON(c, &req); err != nil {
		serializer.Abort(c, err)
		return
	}

	out, err := h.forums.CreateTopic(c.Request.Context(), middleware.CurrentUser(c), ownerFrom(c), c.Param("category"), req)
	if err != nil {
		serializer.Abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, serializer.Response{Code: http.StatusCreated, Data: out})
}

func (h *ForumHandler) GetTopic(c *gin.Context) {
	id, err := idParam(c, "topic_id")
	if err != nil {
		serializer.Abort(c, err)
		return
	}

	out, err := h.forums.GetTopic(c.Request.Context(), ownerFrom(c), c.Param("category"), id)
	if err != nil {
		serializer.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, serializer.Response{Data: out})
}

func (h *ForumHandler) AddReply(c *gin.Context) {
	id, err := idParam(c, "topic_id")
	if err != nil {
		serializer.Abort(c, err)
		return
	}
	req := ReplyReq{}
	if err := bindJSON(c, &req); err != nil {
		serializer.Abort(c, err)
		return
	}

	out, err := h.forums.AddReply(c.Request.Context(), middleware.CurrentUser(c), ownerFrom(c), c.Param("category"), id, req.Content)
	if err != nil {
		serializer.Abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, serializer.Response{Code: http.StatusCreated, Data: out})
}
