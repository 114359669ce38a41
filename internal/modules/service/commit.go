package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/devlog-hq/devlog/internal/config"
	"github.com/devlog-hq/devlog/internal/infra/cache"
	"github.com/devlog-hq/devlog/internal/infra/github"
	"github.com/devlog-hq/devlog/internal/modules/repo"
	"github.com/devlog-hq/devlog/internal/pkg/paging"
	"github.com/devlog-hq/devlog/internal/telemetry"
	"go.uber.org/zap"
)

// CommitProvider is the external source of repository history.
type CommitProvider interface {
	ListCommits(ctx context.Context, repoURL string, page, perPage int) ([]github.Commit, error)
}

// CommitCache is satisfied by *cache.JSON.
type CommitCache interface {
	Key(parts ...any) string
	GetJSON(ctx context.Context, key string, out any) error
	SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error
}

type CommitService interface {
	// ListForProject never fails because of the provider; it reports
	// Degraded instead. Only an unknown project is an error.
	ListForProject(ctx context.Context, projectName string, page paging.Page) (*CommitPage, error)
}

type CommitPage struct {
	Project  string          `json:"project"`
	Commits  []github.Commit `json:"commits"`
	Page     int             `json:"page"`
	PerPage  int             `json:"per_page"`
	Cached   bool            `json:"cached"`
	Degraded bool            `json:"degraded"`
}

type commitService struct {
	projects repo.ProjectRepo
	provider CommitProvider
	cache    CommitCache
	cfg      *config.Config
	log      *zap.Logger
}

// NewCommitService builds the commit history lookup. c may be nil when Redis
// is disabled.
func NewCommitService(projects repo.ProjectRepo, provider CommitProvider, c CommitCache, cfg *config.Config, log *zap.Logger) CommitService {
	return &commitService{projects: projects, provider: provider, cache: c, cfg: cfg, log: log}
}

func (s *commitService) ListForProject(ctx context.Context, projectName string, page paging.Page) (*CommitPage, error) {
	p, err := s.projects.Get(ctx, strings.TrimSpace(projectName))
	if err != nil {
		return nil, dbErr(err, "project")
	}

	page = page.Normalize()
	if limit := s.cfg.GitHub.CommitLimit; limit > 0 && page.PerPage > limit {
		page.PerPage = limit
	}
	out := &CommitPage{Project: p.Name, Commits: []github.Commit{}, Page: page.Page, PerPage: page.PerPage}

	var key string
	if s.cache != nil {
		key = s.cache.Key(xxhash.Sum64String(p.RepositoryURL), page.Page, page.PerPage)
		var cached []github.Commit
		switch err := s.cache.GetJSON(ctx, key, &cached); {
		case err == nil:
			out.Commits, out.Cached = cached, true
			telemetry.RecordCommitFetch(ctx, "cache_hit", 0)
			return out, nil
		case !errors.Is(err, cache.ErrMiss):
			s.log.Warn("commit cache read failed", zap.Error(err), zap.String("project", p.Name))
		}
	}

	start := time.Now()
	commits, err := s.provider.ListCommits(ctx, p.RepositoryURL, page.Page, page.PerPage)
	elapsed := float64(time.Since(start).Milliseconds())
	if err != nil {
		s.log.Warn("commit history unavailable",
			zap.Error(err),
			zap.String("project", p.Name),
			zap.String("repository_url", p.RepositoryURL))
		telemetry.RecordCommitFetch(ctx, "degraded", elapsed)
		out.Degraded = true
		return out, nil
	}
	telemetry.RecordCommitFetch(ctx, "fetched", elapsed)
	if commits != nil {
		out.Commits = commits
	}

	if s.cache != nil {
		ttl := time.Duration(s.cfg.GitHub.CacheTTLSec) * time.Second
		if err := s.cache.SetJSON(ctx, key, out.Commits, ttl); err != nil {
			s.log.Warn("commit cache write failed", zap.Error(err), zap.String("project", p.Name))
		}
	}
	return out, nil
}
