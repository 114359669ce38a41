package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gopkg.in/yaml.v3"

	"github.com/devlog-hq/devlog/internal/middleware"
	"github.com/devlog-hq/devlog/internal/modules/model"
	"github.com/devlog-hq/devlog/internal/modules/serializer"
	"github.com/devlog-hq/devlog/internal/modules/service"
	"github.com/devlog-hq/devlog/internal/pkg/apperr"
)

type AccountHandler struct {
	creds    service.CredentialService
	accounts service.AccountService
}

func NewAccountHandler(creds service.CredentialService, accounts service.AccountService) *AccountHandler {
	return &AccountHandler{creds: creds, accounts: accounts}
}

type LoginReq struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type ChangePasswordReq struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
}

type ChangeEmailReq struct {
	Email string `json:"email" binding:"required"`
}

type TwoFactorReq struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

type ExportReq struct {
	Format  string `form:"format" binding:"omitempty,oneof=json yaml"`
	Archive bool   `form:"archive"`
}

// Profile is what the owner sees about their own account.
type Profile struct {
	*model.User
	Email string `json:"email,omitempty"`
}

func (h *AccountHandler) profile(u *model.User) Profile {
	p := Profile{User: u}
	if email, err := h.creds.GetEmail(u); err == nil {
		p.Email = email
	}
	return p
}

func (h *AccountHandler) Register(c *gin.Context) {
	req := service.RegisterInput{}
	if err := bindJSON(c, &req); err != nil {
		serializer.Abort(c, err)
		return
	}

	user, err := h.creds.Register(c.Request.Context(), req)
	if err != nil {
		serializer.Abort(c, err)
		return
	}
	if err := middleware.StartSession(c, user); err != nil {
		serializer.Abort(c, apperr.Internal("start session", err))
		return
	}

	c.JSON(http.StatusCreated, serializer.Response{Code: http.StatusCreated, Data: h.profile(user)})
}

func (h *AccountHandler) Login(c *gin.Context) {
	req := LoginReq{}
	if err := bindJSON(c, &req); err != nil {
		serializer.Abort(c, err)
		return
	}

	user, err := h.creds.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		serializer.Abort(c, err)
		return
	}
	if err := middleware.StartSession(c, user); err != nil {
		serializer.Abort(c, apperr.Internal("start session", err))
		return
	}

	c.JSON(http.StatusOK, serializer.Response{Data: h.profile(user)})
}

func (h *AccountHandler) Logout(c *gin.Context) {
	_ = middleware.EndSession(c)
	c.JSON(http.StatusOK, serializer.Response{Msg: "logged out"})
}

func (h *AccountHandler) Me(c *gin.Context) {
	c.JSON(http.StatusOK, serializer.Response{Data: h.profile(middleware.CurrentUser(c))})
}

func (h *AccountHandler) ChangePassword(c *gin.Context) {
	req := ChangePasswordReq{}
	if err := bindJSON(c, &req); err != nil {
		serializer.Abort(c, err)
		return
	}

	if err := h.creds.ChangePassword(c.Request.Context(), middleware.CurrentUser(c), req.CurrentPassword, req.NewPassword); err != nil {
		serializer.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, serializer.Response{Msg: "password updated"})
}

func (h *AccountHandler) ChangeEmail(c *gin.Context) {
	req := ChangeEmailReq{}
	if err := bindJSON(c, &req); err != nil {
		serializer.Abort(c, err)
		return
	}

	actor := middleware.CurrentUser(c)
	if err := h.creds.ChangeEmail(c.Request.Context(), actor, req.Email); err != nil {
		serializer.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, serializer.Response{Data: h.profile(actor)})
}

func (h *AccountHandler) SetTwoFactor(c *gin.Context) {
	req := TwoFactorReq{}
	if err := bindJSON(c, &req); err != nil {
		serializer.Abort(c, err)
		return
	}

	actor := middleware.CurrentUser(c)
	if err := h.creds.SetTwoFactor(c.Request.Context(), actor, *req.Enabled); err != nil {
		serializer.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, serializer.Response{Data: h.profile(actor)})
}

// GenerateAPIKey returns the plaintext key. It is never shown again.
func (h *AccountHandler) GenerateAPIKey(c *gin.Context) {
	key, err := h.creds.GenerateAPIKey(c.Request.Context(), middleware.CurrentUser(c))
	if err != nil {
		serializer.Abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, serializer.Response{Code: http.StatusCreated, Data: gin.H{"api_key": key}})
}

func (h *AccountHandler) RevokeAPIKey(c *gin.Context) {
	if err := h.creds.RevokeAPIKey(c.Request.Context(), middleware.CurrentUser(c)); err != nil {
		serializer.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, serializer.Response{Msg: "api key revoked"})
}

func (h *AccountHandler) Export(c *gin.Context) {
	req := ExportReq{}
	if err := bindQuery(c, &req); err != nil {
		serializer.Abort(c, err)
		return
	}
	ctx := c.Request.Context()
	actor := middleware.CurrentUser(c)

	if req.Archive {
		out, err := h.accounts.ArchiveExport(ctx, actor)
		if err != nil {
			serializer.Abort(c, err)
			return
		}
		c.JSON(http.StatusOK, serializer.Response{Data: out})
		return
	}

	snap, err := h.accounts.ExportUserData(ctx, actor)
	if err != nil {
		serializer.Abort(c, err)
		return
	}
	if req.Format == "yaml" {
		b, err := yaml.Marshal(snap)
		if err != nil {
			serializer.Abort(c, apperr.Internal("encode export", err))
			return
		}
		c.Header("Content-Disposition", `attachment; filename="devlog-export.yaml"`)
		c.Data(http.StatusOK, "application/yaml", b)
		return
	}
	c.JSON(http.StatusOK, serializer.Response{Data: snap})
}

func (h *AccountHandler) DeleteAccount(c *gin.Context) {
	if err := h.accounts.DeleteAccount(c.Request.Context(), middleware.CurrentUser(c)); err != nil {
		serializer.Abort(c, err)
		return
	}
	_ = middleware.EndSession(c)
	c.JSON(http.StatusOK, serializer.Response{Msg: "account deleted"})
}
