package service

import (
	"context"
	"strings"

	"github.com/devlog-hq/devlog/internal/config"
	mq "github.com/devlog-hq/devlog/internal/infra/queue"
	"github.com/devlog-hq/devlog/internal/modules/model"
	"github.com/devlog-hq/devlog/internal/modules/repo"
	"github.com/devlog-hq/devlog/internal/pkg/apperr"
	"github.com/devlog-hq/devlog/internal/pkg/paging"
	"github.com/devlog-hq/devlog/internal/pkg/sanitize"
	"github.com/devlog-hq/devlog/internal/telemetry"
	"go.uber.org/zap"
)

// DefaultLanguages get a forum each on first start.
var DefaultLanguages = []string{
	"python", "javascript", "html", "css", "c", "c++",
	"java", "typescript", "php", "go", "rust", "ruby",
}

const (
	OwnerLanguage = "language"
	OwnerProject  = "project"
)

type ForumService interface {
	EnsureDefaultLanguageForums(ctx context.Context) (int, error)
	ListLanguages(ctx context.Context) ([]*model.LanguageTag, error)
	ResolveOwner(ctx context.Context, kind, key string) (model.ForumOwner, error)

	ListTopics(ctx context.Context, owner model.ForumOwner, category string, page paging.Page) (*TopicPage, error)
	CreateTopic(ctx context.Context, actor *model.User, owner model.ForumOwner, category string, in TopicInput) (*model.ForumTopic, error)
	GetTopic(ctx context.Context, owner model.ForumOwner, category string, topicID uint) (*TopicThread, error)
	AddReply(ctx context.Context, actor *model.User, owner model.ForumOwner, category string, topicID uint, content string) (*model.ForumReply, error)
}

type TopicInput struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type TopicView struct {
	*model.ForumTopic
	ReplyCount int64 `json:"reply_count"`
}

type TopicPage struct {
	Category *model.ForumCategory `json:"category"`
	Items    []*TopicView         `json:"items"`
	paging.Meta
}

type TopicThread struct {
	Topic   *model.ForumTopic   `json:"topic"`
	Replies []*model.ForumReply `json:"replies"`
}

type forumService struct {
	r         repo.ForumRepo
	projects  repo.ProjectRepo
	publisher mq.ActivityPublisher
	cfg       *config.Config
	log       *zap.Logger
}

func NewForumService(r repo.ForumRepo, projects repo.ProjectRepo, publisher mq.ActivityPublisher, cfg *config.Config, log *zap.Logger) ForumService {
	return &forumService{r: r, projects: projects, publisher: publisher, cfg: cfg, log: log}
}

func (s *forumService) EnsureDefaultLanguageForums(ctx context.Context) (int, error) {
	n, err := s.r.EnsureLanguageForums(ctx, DefaultLanguages)
	if err != nil {
		return 0, dbErr(err, "language forum")
	}
	if n > 0 {
		s.log.Info("seeded language forums", zap.Int("categories", n))
	}
	return n, nil
}

func (s *forumService) ListLanguages(ctx context.Context) ([]*model.LanguageTag, error) {
	tags, err := s.r.ListLanguages(ctx)
	if err != nil {
		return nil, dbErr(err, "language")
	}
	return tags, nil
}

func (s *forumService) ResolveOwner(ctx context.Context, kind, key string) (model.ForumOwner, error) {
	switch kind {
	case OwnerLanguage:
		tag, err := s.r.GetLanguage(ctx, strings.ToLower(strings.TrimSpace(key)))
		if err != nil {
			return nil, dbErr(err, "language")
		}
		return model.LanguageForum{TagID: tag.ID}, nil
	case OwnerProject:
		p, err := s.projects.Get(ctx, key)
		if err != nil {
			return nil, dbErr(err, "project")
		}
		return model.ProjectForum{ProjectName: p.Name}, nil
	default:
		return nil, apperr.Validation(apperr.CodeInvalidFormat, "unknown forum owner %q", kind)
	}
}

func (s *forumService) category(ctx context.Context, owner model.ForumOwner, name string) (*model.ForumCategory, error) {
	if !model.IsDefaultCategory(name) {
		return nil, apperr.Validation(apperr.CodeInvalidCategory, "category must be one of %s", strings.Join(model.DefaultCategories, ", "))
	}
	c, err := s.r.GetCategory(ctx, owner, name)
	if err != nil {
		return nil, dbErr(err, "category")
	}
	return c, nil
}

func (s *forumService) ListTopics(ctx context.Context, owner model.ForumOwner, category string, page paging.Page) (*TopicPage, error) {
	c, err := s.category(ctx, owner, category)
	if err != nil {
		return nil, err
	}
	page = page.Normalize()
	topics, total, err := s.r.ListTopics(ctx, c.ID, page.Offset(), page.Limit())
	if err != nil {
		return nil, dbErr(err, "topic")
	}

	ids := make([]uint, 0, len(topics))
	for _, t := range topics {
		ids = append(ids, t.ID)
	}
	counts, err := s.r.ReplyCounts(ctx, ids)
	if err != nil {
		return nil, dbErr(err, "reply")
	}
	items := make([]*TopicView, 0, len(topics))
	for _, t := range topics {
		items = append(items, &TopicView{ForumTopic: t, ReplyCount: counts[t.ID]})
	}
	return &TopicPage{Category: c, Items: items, Meta: paging.NewMeta(page, total)}, nil
}

func (s *forumService) CreateTopic(ctx context.Context, actor *model.User, owner model.ForumOwner, category string, in TopicInput) (*model.ForumTopic, error) {
	if err := checkLen("title", in.Title, MaxTitleLen); err != nil {
		return nil, err
	}
	if err := checkLen("content", in.Content, MaxContentLen); err != nil {
		return nil, err
	}
	title := sanitize.Text(in.Title)
	content := sanitize.HTML(in.Content)
	if title == "" || content == "" {
		return nil, apperr.Validation(apperr.CodeEmptyContent, "topic title and content must not be empty")
	}
	c, err := s.category(ctx, owner, category)
	if err != nil {
		return nil, err
	}

	t := &model.ForumTopic{Title: title, Content: content, CategoryID: c.ID, AuthorTag: actor.DeveloperTag}
	if err := s.r.CreateTopic(ctx, t); err != nil {
		return nil, dbErr(err, "topic")
	}

	ev := mq.ActivityEvent{Type: mq.ActivityTopicCreated, Actor: actor.DeveloperTag, TopicID: t.ID, Data: map[string]any{"forum": owner.String(), "category": c.Name}}
	if pf, ok := owner.(model.ProjectForum); ok {
		ev.Project = pf.ProjectName
	}
	publishActivity(ctx, s.publisher, s.log, ev)
	return t, nil
}

// topicIn loads a topic and checks it is filed under owner/category.
func (s *forumService) topicIn(ctx context.Context, owner model.ForumOwner, category string, topicID uint) (*model.ForumTopic, error) {
	c, err := s.category(ctx, owner, category)
	if err != nil {
		return nil, err
	}
	t, err := s.r.GetTopic(ctx, topicID)
	if err != nil {
		return nil, dbErr(err, "topic")
	}
	if t.CategoryID != c.ID {
		return nil, apperr.NotFound("topic not found")
	}
	return t, nil
}

func (s *forumService) GetTopic(ctx context.Context, owner model.ForumOwner, category string, topicID uint) (*TopicThread, error) {
	t, err := s.topicIn(ctx, owner, category, topicID)
	if err != nil {
		return nil, err
	}
	replies, err := s.r.ListReplies(ctx, t.ID)
	if err != nil {
		return nil, dbErr(err, "reply")
	}
	if replies == nil {
		replies = []*model.ForumReply{}
	}
	return &TopicThread{Topic: t, Replies: replies}, nil
}

func (s *forumService) AddReply(ctx context.Context, actor *model.User, owner model.ForumOwner, category string, topicID uint, content string) (*model.ForumReply, error) {
	if err := checkLen("content", content, MaxContentLen); err != nil {
		return nil, err
	}
	body := sanitize.HTML(content)
	if body == "" {
		return nil, apperr.Validation(apperr.CodeEmptyContent, "reply must not be empty")
	}
	t, err := s.topicIn(ctx, owner, category, topicID)
	if err != nil {
		return nil, err
	}

	rp := &model.ForumReply{Content: body, TopicID: t.ID, AuthorTag: actor.DeveloperTag}
	if err := s.r.CreateReply(ctx, rp); err != nil {
		return nil, dbErr(err, "reply")
	}

	telemetry.RecordComment(ctx, "forum")
	publishActivity(ctx, s.publisher, s.log, mq.ActivityEvent{
		Type:    mq.ActivityReplyCreated,
		Actor:   actor.DeveloperTag,
		TopicID: t.ID,
		Data:    map[string]any{"reply_id": rp.ID, "topic_author": t.AuthorTag},
	})
	return rp, nil
}
