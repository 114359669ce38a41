package repo

import (
	"fmt"
	"testing"
	"time"

	"github.com/devlog-hq/devlog/internal/modules/model"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=on", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(model.All()...))
	return db
}

func createTestUser(t *testing.T, db *gorm.DB, tag string) *model.User {
	t.Helper()
	u := &model.User{DeveloperTag: tag, PasswordHash: "x"}
	require.NoError(t, db.Create(u).Error)
	return u
}

func createTestProject(t *testing.T, db *gorm.DB, name, creator string) *model.Project {
	t.Helper()
	p := &model.Project{
		Name:          name,
		Description:   "test project",
		RepositoryURL: "https://github.com/devlog-hq/" + name,
		CreatedBy:     &creator,
	}
	require.NoError(t, NewProjectRepo(db).CreateWithDefaults(t.Context(), p, nil))
	return p
}

func createTestEntry(t *testing.T, db *gorm.DB, project, tag string, at time.Time) *model.Entry {
	t.Helper()
	e := &model.Entry{
		Title:        "entry by " + tag,
		Content:      "worked on " + project,
		ProjectName:  project,
		DeveloperTag: tag,
		Timestamp:    at,
		StartTime:    at.Add(-time.Hour),
		EndTime:      at,
		TimeWorked:   60,
	}
	require.NoError(t, db.Create(e).Error)
	return e
}

func createTestComment(t *testing.T, db *gorm.DB, entryID uint, tag string, parent *uint) *model.Comment {
	t.Helper()
	c := &model.Comment{EntryID: entryID, UserTag: tag, Content: "comment by " + tag, ParentID: parent}
	require.NoError(t, db.Create(c).Error)
	return c
}

func count(t *testing.T, db *gorm.DB, m any, query string, args ...any) int64 {
	t.Helper()
	var n int64
	q := db.Model(m)
	if query != "" {
		q = q.Where(query, args...)
	}
	require.NoError(t, q.Count(&n).Error)
	return n
}
