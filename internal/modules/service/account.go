package service

import (
	"context"
	"fmt"
	"time"

	"github.com/devlog-hq/devlog/internal/config"
	"github.com/devlog-hq/devlog/internal/infra/blob"
	mq "github.com/devlog-hq/devlog/internal/infra/queue"
	"github.com/devlog-hq/devlog/internal/modules/model"
	"github.com/devlog-hq/devlog/internal/modules/repo"
	"github.com/devlog-hq/devlog/internal/pkg/apperr"
	"github.com/devlog-hq/devlog/internal/telemetry"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ExportStore keeps archived snapshots. *blob.S3Deps satisfies it.
type ExportStore interface {
	UploadJSON(ctx context.Context, key string, v any) (*blob.UploadedMeta, error)
	PresignGet(ctx context.Context, key string, expire time.Duration) (string, error)
}

type AccountService interface {
	// ExportUserData gathers everything the actor owns. It never writes.
	ExportUserData(ctx context.Context, actor *model.User) (*ExportSnapshot, error)
	// ArchiveExport stores the snapshot and returns a time-limited link.
	ArchiveExport(ctx context.Context, actor *model.User) (*ExportArchive, error)
	DeleteAccount(ctx context.Context, actor *model.User) error
}

type ExportProfile struct {
	DeveloperTag  string    `json:"developer_tag" yaml:"developer_tag"`
	Email         string    `json:"email,omitempty" yaml:"email,omitempty"`
	TwoFAEnabled  bool      `json:"two_fa_enabled" yaml:"two_fa_enabled"`
	TwoFAVerified bool      `json:"two_fa_verified" yaml:"two_fa_verified"`
	APIEnabled    bool      `json:"api_enabled" yaml:"api_enabled"`
	CreatedAt     time.Time `json:"created_at" yaml:"created_at"`
}

type ExportEntry struct {
	ID            uint      `json:"id" yaml:"id"`
	Title         string    `json:"title" yaml:"title"`
	Content       string    `json:"content" yaml:"content"`
	ProjectName   string    `json:"project_name" yaml:"project_name"`
	Timestamp     time.Time `json:"timestamp" yaml:"timestamp"`
	StartTime     time.Time `json:"start_time" yaml:"start_time"`
	EndTime       time.Time `json:"end_time" yaml:"end_time"`
	TimeWorked    int       `json:"time_worked" yaml:"time_worked"`
	CommitSHA     string    `json:"commit_sha,omitempty" yaml:"commit_sha,omitempty"`
	LikesCount    int64     `json:"likes_count" yaml:"likes_count"`
	DislikesCount int64     `json:"dislikes_count" yaml:"dislikes_count"`
	CommentsCount int64     `json:"comments_count" yaml:"comments_count"`
}

type ExportTopic struct {
	ID         uint      `json:"id" yaml:"id"`
	Title      string    `json:"title" yaml:"title"`
	Content    string    `json:"content" yaml:"content"`
	CategoryID uint      `json:"category_id" yaml:"category_id"`
	CreatedAt  time.Time `json:"created_at" yaml:"created_at"`
}

type ExportReply struct {
	ID        uint      `json:"id" yaml:"id"`
	TopicID   uint      `json:"topic_id" yaml:"topic_id"`
	Content   string    `json:"content" yaml:"content"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

type ExportComment struct {
	ID        uint      `json:"id" yaml:"id"`
	EntryID   uint      `json:"entry_id" yaml:"entry_id"`
	ParentID  *uint     `json:"parent_id,omitempty" yaml:"parent_id,omitempty"`
	Content   string    `json:"content" yaml:"content"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
}

type ExportMembership struct {
	ProjectName string    `json:"project_name" yaml:"project_name"`
	JoinedAt    time.Time `json:"joined_at" yaml:"joined_at"`
}

// ExportSnapshot is the portable copy of an account handed to its owner.
type ExportSnapshot struct {
	ExportedAt  time.Time          `json:"exported_at" yaml:"exported_at"`
	Profile     ExportProfile      `json:"profile" yaml:"profile"`
	Entries     []ExportEntry      `json:"entries" yaml:"entries"`
	Topics      []ExportTopic      `json:"forum_topics" yaml:"forum_topics"`
	Replies     []ExportReply      `json:"forum_replies" yaml:"forum_replies"`
	Comments    []ExportComment    `json:"comments" yaml:"comments"`
	Memberships []ExportMembership `json:"project_memberships" yaml:"project_memberships"`
}

type ExportArchive struct {
	Key       string    `json:"key"`
	URL       string    `json:"url"`
	SizeB     int64     `json:"size_b"`
	ExpiresAt time.Time `json:"expires_at"`
}

type accountService struct {
	r         repo.AccountRepo
	store     ExportStore
	publisher mq.ActivityPublisher
	cfg       *config.Config
	log       *zap.Logger
}

// NewAccountService wires the lifecycle operations. store may be nil, in
// which case ArchiveExport reports an external service error.
func NewAccountService(r repo.AccountRepo, store ExportStore, publisher mq.ActivityPublisher, cfg *config.Config, log *zap.Logger) AccountService {
	return &accountService{r: r, store: store, publisher: publisher, cfg: cfg, log: log}
}

func (s *accountService) ExportUserData(ctx context.Context, actor *model.User) (*ExportSnapshot, error) {
	tag := actor.DeveloperTag
	snap := &ExportSnapshot{
		ExportedAt: time.Now().UTC(),
		Profile: ExportProfile{
			DeveloperTag:  tag,
			TwoFAEnabled:  actor.TwoFAEnabled,
			TwoFAVerified: actor.TwoFAVerified,
			APIEnabled:    actor.APIEnabled,
			CreatedAt:     actor.CreatedAt,
		},
		Entries:     []ExportEntry{},
		Topics:      []ExportTopic{},
		Replies:     []ExportReply{},
		Comments:    []ExportComment{},
		Memberships: []ExportMembership{},
	}
	if s.cfg.Credentials.KeepEmailShadow && actor.EmailShadow != nil {
		snap.Profile.Email = *actor.EmailShadow
	}

	var (
		entries     []*model.Entry
		comments    []*model.Comment
		topics      []*model.ForumTopic
		replies     []*model.ForumReply
		memberships []*model.ProjectMember
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) { entries, err = s.r.EntriesBy(gctx, tag); return })
	g.Go(func() (err error) { comments, err = s.r.CommentsBy(gctx, tag); return })
	g.Go(func() (err error) { topics, err = s.r.TopicsBy(gctx, tag); return })
	g.Go(func() (err error) { replies, err = s.r.RepliesBy(gctx, tag); return })
	g.Go(func() (err error) { memberships, err = s.r.MembershipsOf(gctx, tag); return })
	if err := g.Wait(); err != nil {
		return nil, dbErr(err, "account data")
	}

	ids := make([]uint, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.ID)
	}
	counts, err := s.r.EntryCounts(ctx, ids)
	if err != nil {
		return nil, dbErr(err, "entry")
	}

	for _, e := range entries {
		c := counts[e.ID]
		ee := ExportEntry{
			ID: e.ID, Title: e.Title, Content: e.Content, ProjectName: e.ProjectName,
			Timestamp: e.Timestamp, StartTime: e.StartTime, EndTime: e.EndTime, TimeWorked: e.TimeWorked,
			LikesCount: c.Likes, DislikesCount: c.Dislikes, CommentsCount: c.Comments,
		}
		if e.CommitSHA != nil {
			ee.CommitSHA = *e.CommitSHA
		}
		snap.Entries = append(snap.Entries, ee)
	}
	for _, t := range topics {
		snap.Topics = append(snap.Topics, ExportTopic{ID: t.ID, Title: t.Title, Content: t.Content, CategoryID: t.CategoryID, CreatedAt: t.CreatedAt})
	}
	for _, rp := range replies {
		snap.Replies = append(snap.Replies, ExportReply{ID: rp.ID, TopicID: rp.TopicID, Content: rp.Content, CreatedAt: rp.CreatedAt})
	}
	for _, c := range comments {
		snap.Comments = append(snap.Comments, ExportComment{ID: c.ID, EntryID: c.EntryID, ParentID: c.ParentID, Content: c.Content, Timestamp: c.Timestamp})
	}
	for _, m := range memberships {
		snap.Memberships = append(snap.Memberships, ExportMembership{ProjectName: m.ProjectName, JoinedAt: m.JoinedAt})
	}
	return snap, nil
}

func (s *accountService) ArchiveExport(ctx context.Context, actor *model.User) (*ExportArchive, error) {
	if s.store == nil {
		return nil, apperr.ExternalService("s3", fmt.Errorf("export storage is not configured"))
	}
	snap, err := s.ExportUserData(ctx, actor)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("exports/%s/%d.json", actor.DeveloperTag, snap.ExportedAt.Unix())
	meta, err := s.store.UploadJSON(ctx, key, snap)
	if err != nil {
		s.log.Error("failed to upload export", zap.Error(err), zap.String("key", key))
		return nil, apperr.ExternalService("s3", err)
	}
	expire := time.Duration(s.cfg.S3.PresignExpireSec) * time.Second
	url, err := s.store.PresignGet(ctx, key, expire)
	if err != nil {
		return nil, apperr.ExternalService("s3", err)
	}
	return &ExportArchive{Key: key, URL: url, SizeB: meta.SizeB, ExpiresAt: time.Now().UTC().Add(expire)}, nil
}

func (s *accountService) DeleteAccount(ctx context.Context, actor *model.User) error {
	if err := s.r.DeleteAccount(ctx, actor.DeveloperTag); err != nil {
		s.log.Error("account deletion rolled back", zap.Error(err), zap.String("developer_tag", actor.DeveloperTag))
		return apperr.DeletionFailed(err)
	}

	telemetry.RecordAccount(ctx, "deleted")
	publishActivity(ctx, s.publisher, s.log, mq.ActivityEvent{
		Type:  mq.ActivityAccountDeleted,
		Actor: actor.DeveloperTag,
	})
	return nil
}
