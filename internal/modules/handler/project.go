package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/devlog-hq/devlog/internal/middleware"
	"github.com/devlog-hq/devlog/internal/modules/serializer"
	"github.com/devlog-hq/devlog/internal/modules/service"
)

type ProjectHandler struct {
	projects service.ProjectService
	entries  service.EntryService
	commits  service.CommitService
}

func NewProjectHandler(projects service.ProjectService, entries service.EntryService, commits service.CommitService) *ProjectHandler {
	return &ProjectHandler{projects: projects, entries: entries, commits: commits}
}

type AddMemberReq struct {
	DeveloperTag string `json:"developer_tag" binding:"required,devtag"`
}

func (h *ProjectHandler) Create(c *gin.Context) {
	req := service.CreateProjectInput{}
	if err := bindJSON(c, &req); err != nil {
		serializer.Abort(c, err)
		return
	}

	out, err := h.projects.Create(c.Request.Context(), middleware.CurrentUser(c), req)
	if err != nil {
		serializer.Abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, serializer.Response{Code: http.StatusCreated, Data: out})
}

func (h *ProjectHandler) Get(c *gin.Context) {
	out, err := h.projects.Get(c.Request.Context(), c.Param("name"))
	if err != nil {
		serializer.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, serializer.Response{Data: out})
}

// Mine lists the projects the signed-in user is a member of.
func (h *ProjectHandler) Mine(c *gin.Context) {
	out, err := h.projects.ListForUser(c.Request.Context(), middleware.CurrentUser(c).DeveloperTag)
	if err != nil {
		serializer.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, serializer.Response{Data: out})
}

func (h *ProjectHandler) AddMember(c *gin.Context) {
	req := AddMemberReq{}
	if err := bindJSON(c, &req); err != nil {
		serializer.Abort(c, err)
		return
	}

	if err := h.projects.AddMember(c.Request.Context(), middleware.CurrentUser(c), c.Param("name"), req.DeveloperTag); err != nil {
		serializer.Abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, serializer.Response{Code: http.StatusCreated, Msg: "member added"})
}

// Commits always answers 200 for a known project; a failing provider shows
// up as degraded=true in the body.
func (h *ProjectHandler) Commits(c *gin.Context) {
	page, err := pageFrom(c)
	if err != nil {
		serializer.Abort(c, err)
		return
	}

	out, err := h.commits.ListForProject(c.Request.Context(), c.Param("name"), page)
	if err != nil {
		serializer.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, serializer.Response{Data: out})
}

func (h *ProjectHandler) Stats(c *gin.Context) {
	out, err := h.entries.ProjectStats(c.Request.Context(), c.Param("name"))
	if err != nil {
		serializer.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, serializer.Response{Data: out})
}
