package middleware

import (
	"strings"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/devlog-hq/devlog/internal/config"
	"github.com/devlog-hq/devlog/internal/modules/model"
	"github.com/devlog-hq/devlog/internal/modules/serializer"
	"github.com/devlog-hq/devlog/internal/modules/service"
	"github.com/devlog-hq/devlog/internal/pkg/apperr"
)

const (
	ContextUserKey = "user"

	sessionUserID     = "user_id"
	sessionLastActive = "last_active"
	apiKeyHeader      = "X-API-Key"
)

var errSessionExpired = apperr.Authentication("session expired, please log in again")

// StartSession binds the browser session to user.
func StartSession(c *gin.Context, user *model.User) error {
	s := sessions.Default(c)
	s.Clear()
	s.Set(sessionUserID, user.ID)
	s.Set(sessionLastActive, time.Now().Unix())
	return s.Save()
}

// EndSession forgets the session user.
func EndSession(c *gin.Context) error {
	s := sessions.Default(c)
	s.Clear()
	s.Options(sessions.Options{Path: "/", MaxAge: -1})
	return s.Save()
}

// CurrentUser returns the authenticated user or nil.
func CurrentUser(c *gin.Context) *model.User {
	v, ok := c.Get(ContextUserKey)
	if !ok {
		return nil
	}
	u, _ := v.(*model.User)
	return u
}

func apiKeyFrom(c *gin.Context) string {
	if k := strings.TrimSpace(c.GetHeader(apiKeyHeader)); k != "" {
		return k
	}
	if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return ""
}

// LoadUser resolves the caller from an API key header or the session cookie
// and stores it under ContextUserKey. Anonymous requests pass through; a
// presented but invalid credential is rejected.
func LoadUser(cfg *config.Config, creds service.CredentialService) gin.HandlerFunc {
	idle := time.Duration(cfg.Session.IdleTimeoutSec) * time.Second

	return func(c *gin.Context) {
		ctx, span := otel.Tracer("middleware").Start(c.Request.Context(), "user_auth",
			trace.WithAttributes(attribute.String("middleware", "user_auth")))
		defer span.End()

		if key := apiKeyFrom(c); key != "" {
			user, err := creds.AuthenticateAPIKey(ctx, key)
			if err != nil {
				span.SetAttributes(attribute.Bool("authenticated", false))
				serializer.Abort(c, err)
				return
			}
			span.SetAttributes(attribute.String("auth_method", "api_key"), attribute.Bool("authenticated", true))
			c.Set(ContextUserKey, user)
			c.Next()
			return
		}

		s := sessions.Default(c)
		id, ok := s.Get(sessionUserID).(uint)
		if !ok {
			c.Next()
			return
		}

		if last, ok := s.Get(sessionLastActive).(int64); idle > 0 && ok && time.Since(time.Unix(last, 0)) > idle {
			_ = EndSession(c)
			span.SetAttributes(attribute.Bool("authenticated", false))
			serializer.Abort(c, errSessionExpired)
			return
		}

		user, err := creds.GetUser(ctx, id)
		if err != nil {
			if apperr.IsKind(err, apperr.KindNotFound) {
				// the account is gone; drop the stale cookie
				_ = EndSession(c)
				c.Next()
				return
			}
			span.RecordError(err)
			serializer.Abort(c, err)
			return
		}

		s.Set(sessionLastActive, time.Now().Unix())
		_ = s.Save()

		span.SetAttributes(attribute.String("auth_method", "session"), attribute.Bool("authenticated", true))
		c.Set(ContextUserKey, user)
		c.Next()
	}
}

// RequireUser rejects anonymous requests. It must run after LoadUser.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if CurrentUser(c) == nil {
			serializer.Abort(c, apperr.Authentication("authentication required"))
			return
		}
		c.Next()
	}
}
