package service

import (
	"context"

	"github.com/devlog-hq/devlog/internal/config"
	"github.com/devlog-hq/devlog/internal/modules/model"
	"github.com/devlog-hq/devlog/internal/modules/repo"
	"go.uber.org/zap"
)

const (
	dashboardLimit = 10
	previewLen     = 200
)

type FeedService interface {
	Dashboard(ctx context.Context, actor *model.User) (*Dashboard, error)
}

type Dashboard struct {
	Projects      int64                   `json:"project_count"`
	Entries       int64                   `json:"entry_count"`
	TotalLikes    int64                   `json:"total_likes"`
	TotalDislikes int64                   `json:"total_dislikes"`
	Score         int64                   `json:"score"`
	RecentEntries []*EntryView            `json:"recent_entries"`
	TopicReplies  []*repo.ReplyActivity   `json:"topic_replies"`
	EntryComments []*repo.CommentActivity `json:"entry_comments"`
}

type feedService struct {
	r       repo.FeedRepo
	entries repo.EntryRepo
	cfg     *config.Config
	log     *zap.Logger
}

func NewFeedService(r repo.FeedRepo, entries repo.EntryRepo, cfg *config.Config, log *zap.Logger) FeedService {
	return &feedService{r: r, entries: entries, cfg: cfg, log: log}
}

// Preview shortens s to at most n runes, marking the cut with "...".
func Preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func (s *feedService) Dashboard(ctx context.Context, actor *model.User) (*Dashboard, error) {
	tag := actor.DeveloperTag
	stats, err := s.r.UserStats(ctx, tag)
	if err != nil {
		return nil, dbErr(err, "dashboard")
	}

	recent, err := s.entries.ListByDeveloper(ctx, tag, dashboardLimit)
	if err != nil {
		return nil, dbErr(err, "entry")
	}
	views, err := attachCounts(ctx, s.entries, actor, recent)
	if err != nil {
		return nil, err
	}

	replies, err := s.r.RepliesOnTopicsOf(ctx, tag, dashboardLimit)
	if err != nil {
		return nil, dbErr(err, "reply")
	}
	for _, rp := range replies {
		rp.Content = Preview(rp.Content, previewLen)
	}
	comments, err := s.r.CommentsOnEntriesOf(ctx, tag, dashboardLimit)
	if err != nil {
		return nil, dbErr(err, "comment")
	}
	for _, c := range comments {
		c.Content = Preview(c.Content, previewLen)
	}

	if replies == nil {
		replies = []*repo.ReplyActivity{}
	}
	if comments == nil {
		comments = []*repo.CommentActivity{}
	}
	return &Dashboard{
		Projects:      stats.Projects,
		Entries:       stats.Entries,
		TotalLikes:    stats.TotalLikes,
		TotalDislikes: stats.TotalDislikes,
		Score:         stats.TotalLikes - stats.TotalDislikes,
		RecentEntries: views,
		TopicReplies:  replies,
		EntryComments: comments,
	}, nil
}
