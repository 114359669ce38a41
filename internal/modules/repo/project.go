package repo

import (
	"context"
	"errors"

	"github.com/devlog-hq/devlog/internal/modules/model"
	"gorm.io/gorm"
)

type ProjectRepo interface {
	// CreateWithDefaults stores the project, makes the creator a member,
	// attaches language tags and creates the default forum categories.
	CreateWithDefaults(ctx context.Context, p *model.Project, languages []string) error
	Get(ctx context.Context, name string) (*model.Project, error)
	AddMember(ctx context.Context, projectName, developerTag string) error
	IsMember(ctx context.Context, projectName, developerTag string) (bool, error)
	ListMembers(ctx context.Context, projectName string) ([]string, error)
	ListLanguages(ctx context.Context, projectName string) ([]string, error)
	ListForUser(ctx context.Context, developerTag string) ([]*model.Project, error)
	Stats(ctx context.Context, projectName string) (*ProjectStats, error)
}

type ProjectStats struct {
	TotalEntries int64 `json:"total_entries"`
	TotalMinutes int64 `json:"total_time"`
	Contributors int64 `json:"contributors"`
}

type projectRepo struct{ db *gorm.DB }

func NewProjectRepo(db *gorm.DB) ProjectRepo {
	return &projectRepo{db: db}
}

func (r *projectRepo) CreateWithDefaults(ctx context.Context, p *model.Project, languages []string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(p).Error; err != nil {
			return err
		}
		if p.CreatedBy != nil {
			if err := tx.Create(&model.ProjectMember{ProjectName: p.Name, DeveloperTag: *p.CreatedBy}).Error; err != nil {
				return err
			}
		}
		for _, name := range languages {
			tag, err := firstOrCreateLanguage(tx, name)
			if err != nil {
				return err
			}
			if err := tx.Create(&model.ProjectLanguage{ProjectName: p.Name, LanguageTagID: tag.ID}).Error; err != nil {
				return err
			}
		}
		for _, cat := range model.DefaultCategories {
			c := model.ForumCategory{Name: cat}
			c.SetOwner(model.ProjectForum{ProjectName: p.Name})
			if err := tx.Create(&c).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func firstOrCreateLanguage(tx *gorm.DB, name string) (*model.LanguageTag, error) {
	var tag model.LanguageTag
	err := tx.Where("name = ?", name).First(&tag).Error
	if err == nil {
		return &tag, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	tag = model.LanguageTag{Name: name}
	if err := tx.Create(&tag).Error; err != nil {
		return nil, err
	}
	return &tag, nil
}

func (r *projectRepo) Get(ctx context.Context, name string) (*model.Project, error) {
	var p model.Project
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *projectRepo) AddMember(ctx context.Context, projectName, developerTag string) error {
	return r.db.WithContext(ctx).Create(&model.ProjectMember{
		ProjectName:  projectName,
		DeveloperTag: developerTag,
	}).Error
}

func (r *projectRepo) IsMember(ctx context.Context, projectName, developerTag string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.ProjectMember{}).
		Where("project_name = ? AND developer_tag = ?", projectName, developerTag).
		Count(&n).Error
	return n > 0, err
}

func (r *projectRepo) ListMembers(ctx context.Context, projectName string) ([]string, error) {
	var tags []string
	err := r.db.WithContext(ctx).Model(&model.ProjectMember{}).
		Where("project_name = ?", projectName).
		Order("developer_tag ASC").
		Pluck("developer_tag", &tags).Error
	return tags, err
}

func (r *projectRepo) ListLanguages(ctx context.Context, projectName string) ([]string, error) {
	var names []string
	err := r.db.WithContext(ctx).Table("language_tags").
		Joins("JOIN project_tags ON project_tags.language_tag_id = language_tags.id").
		Where("project_tags.project_name = ?", projectName).
		Order("language_tags.name ASC").
		Pluck("language_tags.name", &names).Error
	return names, err
}

func (r *projectRepo) ListForUser(ctx context.Context, developerTag string) ([]*model.Project, error) {
	var projects []*model.Project
	err := r.db.WithContext(ctx).
		Where("name IN (?)", r.db.Model(&model.ProjectMember{}).Select("project_name").Where("developer_tag = ?", developerTag)).
		Order("name ASC").
		Find(&projects).Error
	return projects, err
}

func (r *projectRepo) Stats(ctx context.Context, projectName string) (*ProjectStats, error) {
	var out ProjectStats
	err := r.db.WithContext(ctx).Model(&model.Entry{}).
		Select("COUNT(*) AS total_entries, COALESCE(SUM(time_worked), 0) AS total_minutes, COUNT(DISTINCT developer_tag) AS contributors").
		Where("project_name = ?", projectName).
		Scan(&out).Error
	if err != nil {
		return nil, err
	}
	return &out, nil
}
