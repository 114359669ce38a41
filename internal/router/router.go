package router

import (
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/devlog-hq/devlog/internal/config"
	"github.com/devlog-hq/devlog/internal/middleware"
	"github.com/devlog-hq/devlog/internal/modules/handler"
	"github.com/devlog-hq/devlog/internal/modules/serializer"
	"github.com/devlog-hq/devlog/internal/modules/service"
	"github.com/devlog-hq/devlog/internal/telemetry"
)

type RouterDeps struct {
	Config         *config.Config
	Log            *zap.Logger
	Credentials    service.CredentialService
	LoginLimiter   *middleware.RateLimiter
	AccountHandler *handler.AccountHandler
	EntryHandler   *handler.EntryHandler
	ProjectHandler *handler.ProjectHandler
	ForumHandler   *handler.ForumHandler
	SearchHandler  *handler.SearchHandler
	FeedHandler    *handler.FeedHandler
}

func sessionStore(cfg *config.Config) sessions.Store {
	store := cookie.NewStore([]byte(cfg.Root.SessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   cfg.Session.MaxAgeSec,
		Secure:   cfg.Session.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return store
}

func NewRouter(d RouterDeps) *gin.Engine {
	serializer.SetLogger(d.Log)
	handler.RegisterValidators()

	r := gin.New()
	r.Use(gin.Recovery())

	if telemetry.Enabled(d.Config) {
		r.Use(telemetry.GinMiddleware(d.Config.App.Name))
		r.Use(telemetry.TraceIDMiddleware())
	}
	r.Use(middleware.ZapLogger(d.Log))

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, serializer.Response{Msg: "ok"}) })

	v1 := r.Group("/api/v1")
	v1.Use(sessions.Sessions(d.Config.Session.CookieName, sessionStore(d.Config)))
	v1.Use(middleware.LoadUser(d.Config, d.Credentials))

	signedIn := middleware.RequireUser()

	auth := v1.Group("/auth")
	{
		auth.POST("/register", d.AccountHandler.Register)
		if d.LoginLimiter != nil {
			auth.POST("/login", d.LoginLimiter.Middleware(), d.AccountHandler.Login)
		} else {
			auth.POST("/login", d.AccountHandler.Login)
		}
		auth.POST("/logout", d.AccountHandler.Logout)
	}

	me := v1.Group("/me", signedIn)
	{
		me.GET("", d.AccountHandler.Me)
		me.DELETE("", d.AccountHandler.DeleteAccount)
		me.PUT("/password", d.AccountHandler.ChangePassword)
		me.PUT("/email", d.AccountHandler.ChangeEmail)
		me.PUT("/two_factor", d.AccountHandler.SetTwoFactor)
		me.POST("/api_key", d.AccountHandler.GenerateAPIKey)
		me.DELETE("/api_key", d.AccountHandler.RevokeAPIKey)
		me.GET("/export", d.AccountHandler.Export)
		me.GET("/projects", d.ProjectHandler.Mine)
	}

	v1.GET("/feed/dashboard", signedIn, d.FeedHandler.Dashboard)

	projects := v1.Group("/projects")
	{
		projects.POST("", signedIn, d.ProjectHandler.Create)
		projects.GET("/:name", d.ProjectHandler.Get)
		projects.POST("/:name/members", signedIn, d.ProjectHandler.AddMember)
		projects.GET("/:name/commits", d.ProjectHandler.Commits)
		projects.GET("/:name/stats", d.ProjectHandler.Stats)
	}

	entries := v1.Group("/entries")
	{
		entries.GET("", d.EntryHandler.List)
		entries.POST("", signedIn, d.EntryHandler.Create)
		entries.GET("/:id", d.EntryHandler.Get)
		entries.DELETE("/:id", signedIn, d.EntryHandler.Delete)
		entries.POST("/:id/react", signedIn, d.EntryHandler.React)
		entries.GET("/:id/comments", d.EntryHandler.ListComments)
		entries.POST("/:id/comments", signedIn, d.EntryHandler.AddComment)
	}

	search := v1.Group("/search")
	{
		search.GET("/entries", d.SearchHandler.SimpleEntries)
		search.GET("/entries/advanced", d.SearchHandler.Entries)
		search.GET("/projects/advanced", d.SearchHandler.Projects)
		search.GET("/forums/advanced", d.SearchHandler.Forums)
	}

	forums := v1.Group("/forums")
	{
		forums.GET("/languages", d.ForumHandler.ListLanguages)

		owners := []struct{ kind, param string }{
			{service.OwnerLanguage, "language"},
			{service.OwnerProject, "project"},
		}
		for _, o := range owners {
			topics := forums.Group("/"+o.kind+"/:"+o.param+"/:category/topics", d.ForumHandler.ResolveOwner(o.kind, o.param))
			topics.GET("", d.ForumHandler.ListTopics)
			topics.POST("", signedIn, d.ForumHandler.CreateTopic)
			topics.GET("/:topic_id", d.ForumHandler.GetTopic)
			topics.POST("/:topic_id/replies", signedIn, d.ForumHandler.AddReply)
		}
	}

	return r
}
