package service

import (
	"strings"
	"testing"

	mq "github.com/devlog-hq/devlog/internal/infra/queue"
	"github.com/devlog-hq/devlog/internal/modules/model"
	"github.com/devlog-hq/devlog/internal/modules/repo"
	"github.com/devlog-hq/devlog/internal/pkg/apperr"
	"github.com/devlog-hq/devlog/internal/pkg/paging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newProjectService(db *gorm.DB) ProjectService {
	return NewProjectService(repo.NewProjectRepo(db), repo.NewUserRepo(db), mq.Discard{}, testConfig(), zap.NewNop())
}

func TestNormalizeLanguages(t *testing.T) {
	assert.Equal(t, []string{"go", "rust", "c++"}, NormalizeLanguages([]string{" Go", "rust", "GO", "", "c++"}))
}

func TestProjectService_Create(t *testing.T) {
	db := newTestDB(t)
	ctx := t.Context()
	alice := seedUser(t, db, "alice")
	svc := newProjectService(db)

	got, err := svc.Create(ctx, alice, CreateProjectInput{
		Name:          "devlog api",
		Description:   "<b>tracking</b> work",
		RepositoryURL: "https://github.com/devlog-hq/devlog",
		Languages:     []string{"Go", "go", "SQL"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"go", "sql"}, got.Languages)

	view, err := svc.Get(ctx, "devlog api")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, view.Members)
	assert.Equal(t, []string{"go", "sql"}, view.Languages)

	escaped, err := svc.Create(ctx, alice, CreateProjectInput{
		Name:          "operators",
		Description:   strings.Repeat("a < b & ", 1249),
		RepositoryURL: "https://github.com/devlog-hq/operators",
	})
	require.NoError(t, err)
	assert.Greater(t, len(escaped.Description), MaxContentLen)

	var cats int64
	require.NoError(t, db.Model(&model.ForumCategory{}).Where("project_name = ?", "devlog api").Count(&cats).Error)
	assert.Equal(t, int64(2), cats)

	tests := []struct {
		name     string
		in       CreateProjectInput
		wantKind apperr.Kind
		wantCode apperr.Code
	}{
		{"missing fields", CreateProjectInput{Name: "x"}, apperr.KindValidation, apperr.CodeMissingField},
		{"bad name", CreateProjectInput{Name: "-dash", Description: "d", RepositoryURL: "https://github.com/a/b"}, apperr.KindValidation, apperr.CodeInvalidFormat},
		{"non github url", CreateProjectInput{Name: "ok", Description: "d", RepositoryURL: "https://gitlab.com/a/b"}, apperr.KindValidation, apperr.CodeInvalidFormat},
		{"duplicate", CreateProjectInput{Name: "devlog api", Description: "d", RepositoryURL: "https://github.com/a/b"}, apperr.KindConflict, ""},
		{"description too long", CreateProjectInput{Name: "big", Description: strings.Repeat("d", MaxContentLen+1), RepositoryURL: "https://github.com/a/b"}, apperr.KindValidation, apperr.CodeTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, alice, tt.in)
			require.Error(t, err)
			assert.Equal(t, tt.wantKind, apperr.KindOf(err))
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, apperr.CodeOf(err))
			}
		})
	}
}

func TestProjectService_AddMember(t *testing.T) {
	db := newTestDB(t)
	ctx := t.Context()
	alice := seedUser(t, db, "alice")
	bob := seedUser(t, db, "bob")
	carol := seedUser(t, db, "carol")
	seedProject(t, db, "devlog", alice)
	svc := newProjectService(db)

	assert.True(t, apperr.IsKind(svc.AddMember(ctx, bob, "devlog", "carol"), apperr.KindForbidden))
	require.NoError(t, svc.AddMember(ctx, alice, "devlog", " BOB "))
	assert.True(t, apperr.IsKind(svc.AddMember(ctx, alice, "devlog", "bob"), apperr.KindConflict))
	assert.True(t, apperr.IsKind(svc.AddMember(ctx, alice, "devlog", "nobody"), apperr.KindNotFound))
	assert.True(t, apperr.IsKind(svc.AddMember(ctx, alice, "ghost", "bob"), apperr.KindNotFound))
	require.NoError(t, svc.AddMember(ctx, bob, "devlog", carol.DeveloperTag))

	projects, err := svc.ListForUser(ctx, "carol")
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, "devlog", projects[0].Name)
}

func TestForumService(t *testing.T) {
	db := newTestDB(t)
	ctx := t.Context()
	alice := seedUser(t, db, "alice")
	bob := seedUser(t, db, "bob")
	seedProject(t, db, "devlog", alice)

	rec := &mq.Recorder{}
	svc := NewForumService(repo.NewForumRepo(db), repo.NewProjectRepo(db), rec, testConfig(), zap.NewNop())

	n, err := svc.EnsureDefaultLanguageForums(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(DefaultLanguages)*2, n)
	n, err = svc.EnsureDefaultLanguageForums(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	langs, err := svc.ListLanguages(ctx)
	require.NoError(t, err)
	assert.Len(t, langs, len(DefaultLanguages))

	goForum, err := svc.ResolveOwner(ctx, OwnerLanguage, "Go")
	require.NoError(t, err)
	projForum, err := svc.ResolveOwner(ctx, OwnerProject, "devlog")
	require.NoError(t, err)
	_, err = svc.ResolveOwner(ctx, OwnerLanguage, "cobol")
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
	_, err = svc.ResolveOwner(ctx, "team", "x")
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	_, err = svc.CreateTopic(ctx, alice, goForum, "random", TopicInput{Title: "t", Content: "c"})
	assert.True(t, apperr.IsCode(err, apperr.CodeInvalidCategory))
	_, err = svc.CreateTopic(ctx, alice, goForum, model.CategoryHelp, TopicInput{Title: "<i></i>", Content: "c"})
	assert.True(t, apperr.IsCode(err, apperr.CodeEmptyContent))

	topic, err := svc.CreateTopic(ctx, alice, goForum, model.CategoryHelp, TopicInput{Title: "Context cancel", Content: "<p>when?</p>"})
	require.NoError(t, err)
	_, err = svc.AddReply(ctx, bob, goForum, model.CategoryHelp, topic.ID, "always pass ctx")
	require.NoError(t, err)

	// the same topic is not reachable through another forum or category
	_, err = svc.GetTopic(ctx, projForum, model.CategoryHelp, topic.ID)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
	_, err = svc.AddReply(ctx, bob, goForum, model.CategoryGeneral, topic.ID, "x")
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))

	thread, err := svc.GetTopic(ctx, goForum, model.CategoryHelp, topic.ID)
	require.NoError(t, err)
	require.Len(t, thread.Replies, 1)
	assert.Equal(t, "bob", thread.Replies[0].AuthorTag)

	page, err := svc.ListTopics(ctx, goForum, model.CategoryHelp, paging.Page{Page: 1, PerPage: 20})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, int64(1), page.Items[0].ReplyCount)
	assert.Equal(t, int64(1), page.Total)

	require.Len(t, rec.Events, 2)
	assert.Equal(t, mq.ActivityTopicCreated, rec.Events[0].Type)
	assert.Equal(t, mq.ActivityReplyCreated, rec.Events[1].Type)
}
