package handler

import (
	"context"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"

	"github.com/devlog-hq/devlog/internal/middleware"
	"github.com/devlog-hq/devlog/internal/modules/model"
	"github.com/devlog-hq/devlog/internal/modules/repo"
	"github.com/devlog-hq/devlog/internal/modules/service"
	"github.com/devlog-hq/devlog/internal/pkg/paging"
)

func setupRouter(actor *model.User) *gin.Engine {
	gin.SetMode(gin.TestMode)
	RegisterValidators()
	r := gin.New()
	r.Use(sessions.Sessions("test-session", cookie.NewStore([]byte("secret"))))
	r.Use(func(c *gin.Context) {
		if actor != nil {
			c.Set(middleware.ContextUserKey, actor)
		}
		c.Next()
	})
	return r
}

// result splits a (value, error) mock return where the value may be nil.
func result[T any](args mock.Arguments) (T, error) {
	var zero T
	if args.Get(0) == nil {
		return zero, args.Error(1)
	}
	return args.Get(0).(T), args.Error(1)
}

type MockCredentialService struct {
	mock.Mock
}

func (m *MockCredentialService) Register(ctx context.Context, in service.RegisterInput) (*model.User, error) {
	return result[*model.User](m.Called(ctx, in))
}

func (m *MockCredentialService) Authenticate(ctx context.Context, email, password string) (*model.User, error) {
	return result[*model.User](m.Called(ctx, email, password))
}

func (m *MockCredentialService) AuthenticateAPIKey(ctx context.Context, token string) (*model.User, error) {
	return result[*model.User](m.Called(ctx, token))
}

func (m *MockCredentialService) GetUser(ctx context.Context, id uint) (*model.User, error) {
	return result[*model.User](m.Called(ctx, id))
}

func (m *MockCredentialService) ChangePassword(ctx context.Context, actor *model.User, current, next string) error {
	return m.Called(ctx, actor, current, next).Error(0)
}

func (m *MockCredentialService) VerifyPassword(actor *model.User, raw string) bool {
	return m.Called(actor, raw).Bool(0)
}

func (m *MockCredentialService) ChangeEmail(ctx context.Context, actor *model.User, email string) error {
	return m.Called(ctx, actor, email).Error(0)
}

func (m *MockCredentialService) VerifyEmail(actor *model.User, email string) bool {
	return m.Called(actor, email).Bool(0)
}

func (m *MockCredentialService) GetEmail(actor *model.User) (string, error) {
	args := m.Called(actor)
	return args.String(0), args.Error(1)
}

func (m *MockCredentialService) GenerateAPIKey(ctx context.Context, actor *model.User) (string, error) {
	args := m.Called(ctx, actor)
	return args.String(0), args.Error(1)
}

func (m *MockCredentialService) VerifyAPIKey(actor *model.User, candidate string) bool {
	return m.Called(actor, candidate).Bool(0)
}

func (m *MockCredentialService) RevokeAPIKey(ctx context.Context, actor *model.User) error {
	return m.Called(ctx, actor).Error(0)
}

func (m *MockCredentialService) SetTwoFactor(ctx context.Context, actor *model.User, enabled bool) error {
	return m.Called(ctx, actor, enabled).Error(0)
}

func (m *MockCredentialService) MigrateLegacyCredentials(ctx context.Context, opts service.MigrateOptions) (*service.MigrationReport, error) {
	return result[*service.MigrationReport](m.Called(ctx, opts))
}

func (m *MockCredentialService) VerifyMigration(ctx context.Context) (*service.MigrationVerification, error) {
	return result[*service.MigrationVerification](m.Called(ctx))
}

type MockAccountService struct {
	mock.Mock
}

func (m *MockAccountService) ExportUserData(ctx context.Context, actor *model.User) (*service.ExportSnapshot, error) {
	return result[*service.ExportSnapshot](m.Called(ctx, actor))
}

func (m *MockAccountService) ArchiveExport(ctx context.Context, actor *model.User) (*service.ExportArchive, error) {
	return result[*service.ExportArchive](m.Called(ctx, actor))
}

func (m *MockAccountService) DeleteAccount(ctx context.Context, actor *model.User) error {
	return m.Called(ctx, actor).Error(0)
}

type MockEntryService struct {
	mock.Mock
}

func (m *MockEntryService) Create(ctx context.Context, actor *model.User, in service.CreateEntryInput) (*service.EntryView, error) {
	return result[*service.EntryView](m.Called(ctx, actor, in))
}

func (m *MockEntryService) Get(ctx context.Context, viewer *model.User, id uint) (*service.EntryView, error) {
	return result[*service.EntryView](m.Called(ctx, viewer, id))
}

func (m *MockEntryService) ListRecent(ctx context.Context, viewer *model.User, page paging.Page) (*service.EntryPage, error) {
	return result[*service.EntryPage](m.Called(ctx, viewer, page))
}

func (m *MockEntryService) Delete(ctx context.Context, actor *model.User, id uint) error {
	return m.Called(ctx, actor, id).Error(0)
}

func (m *MockEntryService) ProjectStats(ctx context.Context, projectName string) (*repo.ProjectStats, error) {
	return result[*repo.ProjectStats](m.Called(ctx, projectName))
}

type MockReactionService struct {
	mock.Mock
}

func (m *MockReactionService) Toggle(ctx context.Context, actor *model.User, entryID uint, kind string) (*service.ReactionResult, error) {
	return result[*service.ReactionResult](m.Called(ctx, actor, entryID, kind))
}

type MockCommentService struct {
	mock.Mock
}

func (m *MockCommentService) AddComment(ctx context.Context, actor *model.User, in service.AddCommentInput) (*model.Comment, error) {
	return result[*model.Comment](m.Called(ctx, actor, in))
}

func (m *MockCommentService) ListThread(ctx context.Context, entryID uint) ([]*service.CommentNode, error) {
	return result[[]*service.CommentNode](m.Called(ctx, entryID))
}

type MockProjectService struct {
	mock.Mock
}

func (m *MockProjectService) Create(ctx context.Context, actor *model.User, in service.CreateProjectInput) (*service.ProjectView, error) {
	return result[*service.ProjectView](m.Called(ctx, actor, in))
}

func (m *MockProjectService) Get(ctx context.Context, name string) (*service.ProjectView, error) {
	return result[*service.ProjectView](m.Called(ctx, name))
}

func (m *MockProjectService) AddMember(ctx context.Context, actor *model.User, projectName, developerTag string) error {
	return m.Called(ctx, actor, projectName, developerTag).Error(0)
}

func (m *MockProjectService) ListForUser(ctx context.Context, developerTag string) ([]*model.Project, error) {
	return result[[]*model.Project](m.Called(ctx, developerTag))
}

type MockCommitService struct {
	mock.Mock
}

func (m *MockCommitService) ListForProject(ctx context.Context, projectName string, page paging.Page) (*service.CommitPage, error) {
	return result[*service.CommitPage](m.Called(ctx, projectName, page))
}

type MockForumService struct {
	mock.Mock
}

func (m *MockForumService) EnsureDefaultLanguageForums(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockForumService) ListLanguages(ctx context.Context) ([]*model.LanguageTag, error) {
	return result[[]*model.LanguageTag](m.Called(ctx))
}

func (m *MockForumService) ResolveOwner(ctx context.Context, kind, key string) (model.ForumOwner, error) {
	return result[model.ForumOwner](m.Called(ctx, kind, key))
}

func (m *MockForumService) ListTopics(ctx context.Context, owner model.ForumOwner, category string, page paging.Page) (*service.TopicPage, error) {
	return result[*service.TopicPage](m.Called(ctx, owner, category, page))
}

func (m *MockForumService) CreateTopic(ctx context.Context, actor *model.User, owner model.ForumOwner, category string, in service.TopicInput) (*model.ForumTopic, error) {
	return result[*model.ForumTopic](m.Called(ctx, actor, owner, category, in))
}

func (m *MockForumService) GetTopic(ctx context.Context, owner model.ForumOwner, category string, topicID uint) (*service.TopicThread, error) {
	return result[*service.TopicThread](m.Called(ctx, owner, category, topicID))
}

func (m *MockForumService) AddReply(ctx context.Context, actor *model.User, owner model.ForumOwner, category string, topicID uint, content string) (*model.ForumReply, error) {
	return result[*model.ForumReply](m.Called(ctx, actor, owner, category, topicID, content))
}

type MockSearchService struct {
	mock.Mock
}

func (m *MockSearchService) SimpleEntries(ctx context.Context, viewer *model.User, q service.SimpleEntryQuery) (*service.EntryPage, error) {
	return result[*service.EntryPage](m.Called(ctx, viewer, q))
}

func (m *MockSearchService) Entries(ctx context.Context, viewer *model.User, q service.EntryQuery) (*service.EntryPage, error) {
	return result[*service.EntryPage](m.Called(ctx, viewer, q))
}

func (m *MockSearchService) Projects(ctx context.Context, q service.ProjectQuery) (*service.ProjectPage, error) {
	return result[*service.ProjectPage](m.Called(ctx, q))
}

func (m *MockSearchService) Forums(ctx context.Context, q service.TopicQuery) (*service.TopicSearchPage, error) {
	return result[*service.TopicSearchPage](m.Called(ctx, q))
}

type MockFeedService struct {
	mock.Mock
}

func (m *MockFeedService) Dashboard(ctx context.Context, actor *model.User) (*service.Dashboard, error) {
	return result[*service.Dashboard](m.Called(ctx, actor))
}
