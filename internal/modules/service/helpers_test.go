package service

import (
	"fmt"
	"testing"

	"github.com/devlog-hq/devlog/internal/modules/model"
	"github.com/devlog-hq/devlog/internal/modules/repo"
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

func seedUser(t *testing.T, db *gorm.DB, tag string) *model.User {
	t.Helper()
	u := &model.User{DeveloperTag: tag, PasswordHash: "x"}
	require.NoError(t, db.Create(u).Error)
	return u
}

func seedProject(t *testing.T, db *gorm.DB, name string, creator *model.User, languages ...string) *model.Project {
	t.Helper()
	p := &model.Project{
		Name:          name,
		Description:   "test project",
		RepositoryURL: "https://github.com/devlog-hq/" + name,
		CreatedBy:     &creator.DeveloperTag,
	}
	require.NoError(t, repo.NewProjectRepo(db).CreateWithDefaults(t.Context(), p, languages))
	return p
}
