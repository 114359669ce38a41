package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/devlog-hq/devlog/internal/config"
	mq "github.com/devlog-hq/devlog/internal/infra/queue"
	"github.com/devlog-hq/devlog/internal/modules/model"
	"github.com/devlog-hq/devlog/internal/modules/repo"
	"github.com/devlog-hq/devlog/internal/pkg/apperr"
	"github.com/devlog-hq/devlog/internal/pkg/paging"
	"github.com/devlog-hq/devlog/internal/pkg/sanitize"
	"github.com/devlog-hq/devlog/internal/telemetry"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	MaxTitleLen       = 200
	MaxContentLen     = 10000
	MaxProjectNameLen = 100

	// RoundingStep is the granularity of time_worked, in minutes.
	RoundingStep = 15
)

// TimestampLayouts are tried in order. Values without a zone are UTC.
var TimestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

var commitSHAPattern = regexp.MustCompile(`^[0-9a-fA-F]{7,40}$`)

type EntryService interface {
	Create(ctx context.Context, actor *model.User, in CreateEntryInput) (*EntryView, error)
	Get(ctx context.Context, viewer *model.User, id uint) (*EntryView, error)
	ListRecent(ctx context.Context, viewer *model.User, page paging.Page) (*EntryPage, error)
	Delete(ctx context.Context, actor *model.User, id uint) error
	ProjectStats(ctx context.Context, projectName string) (*repo.ProjectStats, error)
}

type CreateEntryInput struct {
	Title       string `json:"title"`
	Content     string `json:"content"`
	ProjectName string `json:"project_name"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	CommitSHA   string `json:"commit_sha"`
}

// EntryView is an entry with its read-side counters.
type EntryView struct {
	*model.Entry
	LikesCount    int64  `json:"likes_count"`
	DislikesCount int64  `json:"dislikes_count"`
	CommentsCount int64  `json:"comments_count"`
	UserReaction  string `json:"user_reaction,omitempty"`
}

type EntryPage struct {
	Items []*EntryView `json:"items"`
	paging.Meta
}

type entryService struct {
	r         repo.EntryRepo
	projects  repo.ProjectRepo
	publisher mq.ActivityPublisher
	cfg       *config.Config
	log       *zap.Logger
}

func NewEntryService(r repo.EntryRepo, projects repo.ProjectRepo, publisher mq.ActivityPublisher, cfg *config.Config, log *zap.Logger) EntryService {
	return &entryService{r: r, projects: projects, publisher: publisher, cfg: cfg, log: log}
}

// ParseTimestamp accepts any of TimestampLayouts and returns the instant in UTC.
func ParseTimestamp(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	for _, layout := range TimestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, apperr.Validation(apperr.CodeInvalidTimestamp, "invalid timestamp %q", raw)
}

// RoundWorkedMinutes rounds end-start to the nearest RoundingStep minutes.
// An exact half step rounds up.
func RoundWorkedMinutes(start, end time.Time) int {
	secs := int64(end.Sub(start) / time.Second)
	step := int64(RoundingStep * 60)
	return int(((secs + step/2) / step) * RoundingStep)
}

func tooLong(field string, limit int) error {
	e := apperr.Validation(apperr.CodeTooLong, "%s exceeds %d characters", field, limit)
	e.Fields = []string{field}
	return e
}

// checkLen measures what the user typed. Sanitising escapes & and <, so the
// stored form may be longer than the input.
func checkLen(field, raw string, limit int) error {
	if utf8.RuneCountInString(strings.TrimSpace(raw)) > limit {
		return tooLong(field, limit)
	}
	return nil
}

func (s *entryService) Create(ctx context.Context, actor *model.User, in CreateEntryInput) (*EntryView, error) {
	var missing []string
	if strings.TrimSpace(in.Title) == "" {
		missing = append(missing, "title")
	}
	if strings.TrimSpace(in.Content) == "" {
		missing = append(missing, "content")
	}
	if strings.TrimSpace(in.ProjectName) == "" {
		missing = append(missing, "project_name")
	}
	if strings.TrimSpace(in.StartTime) == "" {
		missing = append(missing, "start_time")
	}
	if strings.TrimSpace(in.EndTime) == "" {
		missing = append(missing, "end_time")
	}
	if len(missing) > 0 {
		return nil, apperr.MissingFields(missing...)
	}

	start, err := ParseTimestamp(in.StartTime)
	if err != nil {
		return nil, err
	}
	end, err := ParseTimestamp(in.EndTime)
	if err != nil {
		return nil, err
	}
	if !end.After(start) {
		return nil, apperr.Validation(apperr.CodeInvalidRange, "end_time must be after start_time")
	}

	if err := checkLen("title", in.Title, MaxTitleLen); err != nil {
		return nil, err
	}
	if err := checkLen("content", in.Content, MaxContentLen); err != nil {
		return nil, err
	}
	if err := checkLen("project_name", in.ProjectName, MaxProjectNameLen); err != nil {
		return nil, err
	}
	title := sanitize.Text(in.Title)
	content := sanitize.HTML(in.Content)
	projectName := sanitize.Text(in.ProjectName)
	if title == "" || content == "" || projectName == "" {
		return nil, apperr.Validation(apperr.CodeEmptyContent, "title, content and project_name must contain text")
	}

	var sha *string
	if v := strings.TrimSpace(in.CommitSHA); v != "" {
		if !commitSHAPattern.MatchString(v) {
			return nil, apperr.Validation(apperr.CodeInvalidFormat, "commit_sha must be 7-40 hex characters")
		}
		v = strings.ToLower(v)
		sha = &v
	}

	if _, err := s.projects.Get(ctx, projectName); err != nil {
		return nil, dbErr(err, "project")
	}

	e := &model.Entry{
		Title:        title,
		Content:      content,
		ProjectName:  projectName,
		DeveloperTag: actor.DeveloperTag,
		Timestamp:    time.Now().UTC(),
		StartTime:    start,
		EndTime:      end,
		TimeWorked:   RoundWorkedMinutes(start, end),
		CommitSHA:    sha,
	}
	if err := s.r.Create(ctx, e); err != nil {
		return nil, dbErr(err, "entry")
	}

	telemetry.RecordEntry(ctx, "created")
	publishActivity(ctx, s.publisher, s.log, mq.ActivityEvent{
		Type:    mq.ActivityEntryCreated,
		Actor:   actor.DeveloperTag,
		Project: e.ProjectName,
		EntryID: e.ID,
		Data:    map[string]any{"time_worked": e.TimeWorked},
	})
	return &EntryView{Entry: e}, nil
}

func (s *entryService) Get(ctx context.Context, viewer *model.User, id uint) (*EntryView, error) {
	e, err := s.r.Get(ctx, id)
	if err != nil {
		return nil, dbErr(err, "entry")
	}
	views, err := s.withCounts(ctx, viewer, []*model.Entry{e})
	if err != nil {
		return nil, err
	}
	return views[0], nil
}

func (s *entryService) ListRecent(ctx context.Context, viewer *model.User, page paging.Page) (*EntryPage, error) {
	page = page.Normalize()
	entries, total, err := s.r.ListRecent(ctx, page.Offset(), page.Limit())
	if err != nil {
		return nil, dbErr(err, "entry")
	}
	views, err := s.withCounts(ctx, viewer, entries)
	if err != nil {
		return nil, err
	}
	return &EntryPage{Items: views, Meta: paging.NewMeta(page, total)}, nil
}

func (s *entryService) withCounts(ctx context.Context, viewer *model.User, entries []*model.Entry) ([]*EntryView, error) {
	return attachCounts(ctx, s.r, viewer, entries)
}

// attachCounts decorates entries with reaction and comment counts using one
// grouped lookup for the whole slice.
func attachCounts(ctx context.Context, r repo.EntryRepo, viewer *model.User, entries []*model.Entry) ([]*EntryView, error) {
	views := make([]*EntryView, 0, len(entries))
	if len(entries) == 0 {
		return views, nil
	}
	ids := make([]uint, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.ID)
	}
	viewerTag := ""
	if viewer != nil {
		viewerTag = viewer.DeveloperTag
	}
	counts, err := r.Counts(ctx, ids, viewerTag)
	if err != nil {
		return nil, dbErr(err, "entry")
	}
	for _, e := range entries {
		c := counts[e.ID]
		v := &EntryView{Entry: e, LikesCount: c.Likes, DislikesCount: c.Dislikes, CommentsCount: c.Comments}
		if c.UserReaction != model.ReactionNone {
			v.UserReaction = c.UserReaction.String()
		}
		views = append(views, v)
	}
	return views, nil
}

func (s *entryService) Delete(ctx context.Context, actor *model.User, id uint) error {
	e, err := s.r.Get(ctx, id)
	if err != nil {
		return dbErr(err, "entry")
	}
	if e.DeveloperTag != actor.DeveloperTag {
		return apperr.Forbidden("only the author can delete entry %d", id)
	}
	if err := s.r.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("entry not found")
		}
		return dbErr(err, "entry")
	}

	telemetry.RecordEntry(ctx, "deleted")
	publishActivity(ctx, s.publisher, s.log, mq.ActivityEvent{
		Type:    mq.ActivityEntryDeleted,
		Actor:   actor.DeveloperTag,
		Project: e.ProjectName,
		EntryID: e.ID,
	})
	return nil
}

func (s *entryService) ProjectStats(ctx context.Context, projectName string) (*repo.ProjectStats, error) {
	if _, err := s.projects.Get(ctx, projectName); err != nil {
		return nil, dbErr(err, "project")
	}
	stats, err := s.projects.Stats(ctx, projectName)
	if err != nil {
		return nil, dbErr(err, "project")
	}
	return stats, nil
}
