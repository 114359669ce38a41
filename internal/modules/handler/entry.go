package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/devlog-hq/devlog/internal/middleware"
	"github.com/devlog-hq/devlog/internal/modules/serializer"
	"github.com/devlog-hq/devlog/internal/modules/service"
)

type EntryHandler struct {
	entries   service.EntryService
	reactions service.ReactionService
	comments  service.CommentService
}

func NewEntryHandler(entries service.EntryService, reactions service.ReactionService, comments service.CommentService) *EntryHandler {
	return &EntryHandler{entries: entries, reactions: reactions, comments: comments}
}

type ReactReq struct {
	ReactionType string `json:"reaction_type" binding:"required"`
}

type AddCommentReq struct {
	Content  string `json:"content" binding:"required"`
	ParentID *uint  `json:"parent_id"`
}

func (h *EntryHandler) Create(c *gin.Context) {
	req := service.CreateEntryInput{}
	if err := bindJSON(c, &req); err != nil {
		serializer.Abort(c, err)
		return
	}

	out, err := h.entries.Create(c.Request.Context(), middleware.CurrentUser(c), req)
	if err != nil {
		serializer.Abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, serializer.Response{Code: http.StatusCreated, Data: out})
}

func (h *EntryHandler) List(c *gin.Context) {
	page, err := pageFrom(c)
	if err != nil {
		serializer.Abort(c, err)
		return
	}

	out, err := h.entries.ListRecent(c.Request.Context(), middleware.CurrentUser(c), page)
	if err != nil {
		serializer.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, serializer.Response{Data: out})
}

func (h *EntryHandler) Get(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		serializer.Abort(c, err)
		return
	}

	out, err := h.entries.Get(c.Request.Context(), middleware.CurrentUser(c), id)
	if err != nil {
		serializer.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, serializer.Response{Data: out})
}

func (h *EntryHandler) Delete(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		serializer.Abort(c, err)
		return
	}

	if err := h.entries.Delete(c.Request.Context(), middleware.CurrentUser(c), id); err != nil {
		serializer.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, serializer.Response{Msg: "entry deleted"})
}

func (h *EntryHandler) React(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		serializer.Abort(c, err)
		return
	}
	req := ReactReq{}
	if err := bindJSON(c, &req); err != nil {
		serializer.Abort(c, err)
		return
	}

	out, err := h.reactions.Toggle(c.Request.Context(), middleware.CurrentUser(c), id, req.ReactionType)
	if err != nil {
		serializer.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, serializer.Response{Data: out})
}

func (h *EntryHandler) ListComments(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		serializer.Abort(c, err)
		return
	}

	out, err := h.comments.ListThread(c.Request.Context(), id)
	if err != nil {
		serializer.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, serializer.Response{Data: out})
}

func (h *EntryHandler) AddComment(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		serializer.Abort(c, err)
		return
	}
	req := AddCommentReq{}
	if err := bindJSON(c, &req); err != nil {
		serializer.Abort(c, err)
		return
	}

	out, err := h.comments.AddComment(c.Request.Context(), middleware.CurrentUser(c), service.AddCommentInput{
		EntryID:  id,
		Content:  req.Content,
		ParentID: req.ParentID,
	})
	if err != nil {
		serializer.Abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, serializer.Response{Code: http.StatusCreated, Data: out})
}
