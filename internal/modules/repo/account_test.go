package repo

import (
	"errors"
	"testing"
	"time"

	"github.com/devlog-hq/devlog/internal/modules/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestAccountRepo_DeleteAccount(t *testing.T) {
	db := newTestDB(t)
	ctx := t.Context()
	now := time.Now().UTC()

	createTestUser(t, db, "alice")
	createTestUser(t, db, "bob")
	createTestProject(t, db, "alice-proj", "alice")
	createTestProject(t, db, "bob-proj", "bob")
	require.NoError(t, NewProjectRepo(db).AddMember(ctx, "bob-proj", "alice"))

	aliceEntry := createTestEntry(t, db, "alice-proj", "alice", now)
	bobEntry := createTestEntry(t, db, "bob-proj", "bob", now)

	reactions := NewReactionRepo(db)
	_, err := reactions.Toggle(ctx, aliceEntry.ID, "bob", model.ReactionLike)
	require.NoError(t, err)
	_, err = reactions.Toggle(ctx, bobEntry.ID, "alice", model.ReactionDislike)
	require.NoError(t, err)
	_, err = reactions.Toggle(ctx, bobEntry.ID, "bob", model.ReactionLike)
	require.NoError(t, err)

	// bob comments on alice's entry, alice comments on bob's entry and bob replies to her
	createTestComment(t, db, aliceEntry.ID, "bob", nil)
	aliceOnBob := createTestComment(t, db, bobEntry.ID, "alice", nil)
	bobReply := createTestComment(t, db, bobEntry.ID, "bob", &aliceOnBob.ID)
	createTestComment(t, db, bobEntry.ID, "bob", &bobReply.ID)
	bobStandalone := createTestComment(t, db, bobEntry.ID, "bob", nil)

	forums := NewForumRepo(db)
	general, err := forums.GetCategory(ctx, model.ProjectForum{ProjectName: "bob-proj"}, model.CategoryGeneral)
	require.NoError(t, err)
	aliceTopic := &model.ForumTopic{Title: "alice topic", Content: "c", CategoryID: general.ID, AuthorTag: "alice"}
	require.NoError(t, forums.CreateTopic(ctx, aliceTopic))
	bobTopic := &model.ForumTopic{Title: "bob topic", Content: "c", CategoryID: general.ID, AuthorTag: "bob"}
	require.NoError(t, forums.CreateTopic(ctx, bobTopic))
	require.NoError(t, forums.CreateReply(ctx, &model.ForumReply{Content: "r", TopicID: aliceTopic.ID, AuthorTag: "bob"}))
	require.NoError(t, forums.CreateReply(ctx, &model.ForumReply{Content: "r", TopicID: bobTopic.ID, AuthorTag: "alice"}))
	require.NoError(t, forums.CreateReply(ctx, &model.ForumReply{Content: "r", TopicID: bobTopic.ID, AuthorTag: "bob"}))

	require.NoError(t, NewAccountRepo(db).DeleteAccount(ctx, "alice"))

	assert.Zero(t, count(t, db, &model.User{}, "developer_tag = ?", "alice"))
	assert.Zero(t, count(t, db, &model.Entry{}, "developer_tag = ?", "alice"))
	assert.Zero(t, count(t, db, &model.Reaction{}, "user_tag = ? OR entry_id = ?", "alice", aliceEntry.ID))
	assert.Zero(t, count(t, db, &model.Comment{}, "user_tag = ? OR entry_id = ?", "alice", aliceEntry.ID))
	assert.Zero(t, count(t, db, &model.ForumTopic{}, "author_tag = ?", "alice"))
	assert.Zero(t, count(t, db, &model.ForumReply{}, "author_tag = ? OR topic_id = ?", "alice", aliceTopic.ID))
	assert.Zero(t, count(t, db, &model.ProjectMember{}, "developer_tag = ?", "alice"))

	// replies beneath alice's comment went with it; bob's own thread survives
	assert.Equal(t, int64(1), count(t, db, &model.Comment{}, ""))
	assert.Equal(t, int64(1), count(t, db, &model.Comment{}, "id = ?", bobStandalone.ID))
	assert.Equal(t, int64(1), count(t, db, &model.Reaction{}, ""))
	assert.Equal(t, int64(1), count(t, db, &model.ForumReply{}, ""))
	assert.Equal(t, int64(1), count(t, db, &model.ForumTopic{}, ""))

	var p model.Project
	require.NoError(t, db.Where("name = ?", "alice-proj").First(&p).Error)
	assert.Nil(t, p.CreatedBy)
	assert.Equal(t, int64(1), count(t, db, &model.User{}, ""))
}

func TestAccountRepo_DeleteUnknownUserRollsBack(t *testing.T) {
	db := newTestDB(t)
	err := NewAccountRepo(db).DeleteAccount(t.Context(), "ghost")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestAccountRepo_DeleteFailureKeepsEverything(t *testing.T) {
	db := newTestDB(t)
	ctx := t.Context()
	now := time.Now().UTC()

	createTestUser(t, db, "alice")
	createTestUser(t, db, "bob")
	createTestProject(t, db, "alice-proj", "alice")
	entry := createTestEntry(t, db, "alice-proj", "alice", now)
	_, err := NewReactionRepo(db).Toggle(ctx, entry.ID, "bob", model.ReactionLike)
	require.NoError(t, err)
	root := createTestComment(t, db, entry.ID, "bob", nil)
	createTestComment(t, db, entry.ID, "alice", &root.ID)

	forums := NewForumRepo(db)
	general, err := forums.GetCategory(ctx, model.ProjectForum{ProjectName: "alice-proj"}, model.CategoryGeneral)
	require.NoError(t, err)
	topic := &model.ForumTopic{Title: "t", Content: "c", CategoryID: general.ID, AuthorTag: "alice"}
	require.NoError(t, forums.CreateTopic(ctx, topic))
	require.NoError(t, forums.CreateReply(ctx, &model.ForumReply{Content: "r", TopicID: topic.ID, AuthorTag: "bob"}))

	// reactions, comments and replies are already gone when the topic delete fails
	boom := errors.New("disk full")
	require.NoError(t, db.Callback().Delete().Before("gorm:delete").Register("test:fail_topics", func(tx *gorm.DB) {
		if tx.Statement.Table == "forum_topics" {
			_ = tx.AddError(boom)
		}
	}))

	err = NewAccountRepo(db).DeleteAccount(ctx, "alice")
	assert.ErrorIs(t, err, boom)

	assert.Equal(t, int64(1), count(t, db, &model.User{}, "developer_tag = ?", "alice"))
	assert.Equal(t, int64(1), count(t, db, &model.Entry{}, ""))
	assert.Equal(t, int64(1), count(t, db, &model.Reaction{}, ""))
	assert.Equal(t, int64(2), count(t, db, &model.Comment{}, ""))
	assert.Equal(t, int64(1), count(t, db, &model.ForumTopic{}, ""))
	assert.Equal(t, int64(1), count(t, db, &model.ForumReply{}, ""))
	assert.Equal(t, int64(1), count(t, db, &model.ProjectMember{}, "developer_tag = ?", "alice"))
}

func TestAccountRepo_ExportReads(t *testing.T) {
	db := newTestDB(t)
	ctx := t.Context()
	createTestUser(t, db, "alice")
	createTestProject(t, db, "alice-proj", "alice")
	e1 := createTestEntry(t, db, "alice-proj", "alice", time.Now().UTC().Add(-time.Hour))
	e2 := createTestEntry(t, db, "alice-proj", "alice", time.Now().UTC())
	createTestComment(t, db, e1.ID, "alice", nil)

	r := NewAccountRepo(db)
	entries, err := r.EntriesBy(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, e2.ID, entries[0].ID)

	comments, err := r.CommentsBy(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, comments, 1)

	members, err := r.MembershipsOf(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, "alice-proj", members[0].ProjectName)

	counts, err := r.EntryCounts(ctx, []uint{e1.ID, e2.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts[e1.ID].Comments)
	assert.Equal(t, int64(0), counts[e2.ID].Comments)
}
