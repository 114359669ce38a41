package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/devlog-hq/devlog/internal/middleware"
	"github.com/devlog-hq/devlog/internal/modules/serializer"
	"github.com/devlog-hq/devlog/internal/modules/service"
	"github.com/devlog-hq/devlog/internal/pkg/paging"
)

type SearchHandler struct {
	search service.SearchService
}

func NewSearchHandler(s service.SearchService) *SearchHandler {
	return &SearchHandler{search: s}
}

// bindSearch binds the query string into q and fills its page.
func bindSearch(c *gin.Context, q any, page *paging.Page) error {
	if err := bindQuery(c, q); err != nil {
		return err
	}
	p, err := pageFrom(c)
	if err != nil {
		return err
	}
	*page = p
	return nil
}

func (h *SearchHandler) SimpleEntries(c *gin.Context) {
	q := service.SimpleEntryQuery{}
	if err := bindSearch(c, &q, &q.Page); err != nil {
		serializer.Abort(c, err)
		return
	}

	out, err := h.search.SimpleEntries(c.Request.Context(), middleware.CurrentUser(c), q)
	if err != nil {
		serializer.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, serializer.Response{Data: out})
}

func (h *SearchHandler) Entries(c *gin.Context) {
	q := service.EntryQuery{}
	if err := bindSearch(c, &q, &q.Page); err != nil {
		serializer.Abort(c, err)
		return
	}

	out, err := h.search.Entries(c.Request.Context(), middleware.CurrentUser(c), q)
	if err != nil {
		serializer.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, serializer.Response{Data: out})
}

func (h *SearchHandler) Projects(c *gin.Context) {
	q := service.ProjectQuery{}
	if err := bindSearch(c, &q, &q.Page); err != nil {
		serializer.Abort(c, err)
		return
	}

	out, err := h.search.Projects(c.Request.Context(), q)
	if err != nil {
		serializer.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, serializer.Response{Data: out})
}

func (h *SearchHandler) Forums(c *gin.Context) {
	q := service.TopicQuery{}
	if err := bindSearch(c, &q, &q.Page); err != nil {
		serializer.Abort(c, err)
		return
	}

	out, err := h.search.Forums(c.Request.Context(), q)
	if err != nil {
		serializer.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, serializer.Response{Data: out})
}
