package repo

import (
	"context"

	"github.com/devlog-hq/devlog/internal/modules/model"
	"gorm.io/gorm"
)

type ForumRepo interface {
	// EnsureLanguageForums creates the language tags and their default
	// categories that do not exist yet. It returns how many categories were added.
	EnsureLanguageForums(ctx context.Context, languages []string) (int, error)
	GetLanguage(ctx context.Context, name string) (*model.LanguageTag, error)
	ListLanguages(ctx context.Context) ([]*model.LanguageTag, error)
	GetCategory(ctx context.Context, owner model.ForumOwner, name string) (*model.ForumCategory, error)
	ListCategories(ctx context.Context, owner model.ForumOwner) ([]*model.ForumCategory, error)
	CreateTopic(ctx context.Context, t *model.ForumTopic) error
	GetTopic(ctx context.Context, id uint) (*model.ForumTopic, error)
	ListTopics(ctx context.Context, categoryID uint, offset, limit int) ([]*model.ForumTopic, int64, error)
	CreateReply(ctx context.Context, rp *model.ForumReply) error
	ListReplies(ctx context.Context, topicID uint) ([]*model.ForumReply, error)
	ReplyCounts(ctx context.Context, topicIDs []uint) (map[uint]int64, error)
}

type forumRepo struct{ db *gorm.DB }

func NewForumRepo(db *gorm.DB) ForumRepo {
	return &forumRepo{db: db}
}

func (r *forumRepo) EnsureLanguageForums(ctx context.Context, languages []string) (int, error) {
	created := 0
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, lang := range languages {
			tag, err := firstOrCreateLanguage(tx, lang)
			if err != nil {
				return err
			}
			for _, name := range model.DefaultCategories {
				var n int64
				if err := tx.Model(&model.ForumCategory{}).
					Where("language_tag_id = ? AND name = ?", tag.ID, name).
					Count(&n).Error; err != nil {
					return err
				}
				if n > 0 {
					continue
				}
				c := model.ForumCategory{Name: name}
				c.SetOwner(model.LanguageForum{TagID: tag.ID})
				if err := tx.Create(&c).Error; err != nil {
					return err
				}
				created++
			}
		}
		return nil
	})
	return created, err
}

func (r *forumRepo) GetLanguage(ctx context.Context, name string) (*model.LanguageTag, error) {
	var tag model.LanguageTag
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&tag).Error; err != nil {
		return nil, err
	}
	return &tag, nil
}

func (r *forumRepo) ListLanguages(ctx context.Context) ([]*model.LanguageTag, error) {
	var tags []*model.LanguageTag
	err := r.db.WithContext(ctx).
		Where("id IN (?)", r.db.Model(&model.ForumCategory{}).Select("language_tag_id").Where("language_tag_id IS NOT NULL")).
		Order("name ASC").
		Find(&tags).Error
	return tags, err
}

func ownerScope(owner model.ForumOwner) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		switch o := owner.(type) {
		case model.LanguageForum:
			return db.Where("language_tag_id = ?", o.TagID)
		case model.ProjectForum:
			return db.Where("project_name = ?", o.ProjectName)
		default:
			return db.Where("1 = 0")
		}
	}
}

func (r *forumRepo) GetCategory(ctx context.Context, owner model.ForumOwner, name string) (*model.ForumCategory, error) {
	var c model.ForumCategory
	err := r.db.WithContext(ctx).
		Scopes(ownerScope(owner)).
		Where("name = ?", name).
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *forumRepo) ListCategories(ctx context.Context, owner model.ForumOwner) ([]*model.ForumCategory, error) {
	var out []*model.ForumCategory
	err := r.db.WithContext(ctx).Scopes(ownerScope(owner)).Order("name ASC").Find(&out).Error
	return out, err
}

func (r *forumRepo) CreateTopic(ctx context.Context, t *model.ForumTopic) error {
	return r.db.WithContext(ctx).Create(t).Error
}

func (r *forumRepo) GetTopic(ctx context.Context, id uint) (*model.ForumTopic, error) {
	var t model.ForumTopic
	if err := r.db.WithContext(ctx).First(&t, id).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *forumRepo) ListTopics(ctx context.Context, categoryID uint, offset, limit int) ([]*model.ForumTopic, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.ForumTopic{}).Where("category_id = ?", categoryID).Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var topics []*model.ForumTopic
	err := q.Order("created_at DESC, id DESC").Offset(offset).Limit(limit).Find(&topics).Error
	return topics, total, err
}

func (r *forumRepo) CreateReply(ctx context.Context, rp *model.ForumReply) error {
	return r.db.WithContext(ctx).Create(rp).Error
}

func (r *forumRepo) ListReplies(ctx context.Context, topicID uint) ([]*model.ForumReply, error) {
	var out []*model.ForumReply
	err := r.db.WithContext(ctx).Where("topic_id = ?", topicID).Order("created_at ASC, id ASC").Find(&out).Error
	return out, err
}

func (r *forumRepo) ReplyCounts(ctx context.Context, topicIDs []uint) (map[uint]int64, error) {
	out := make(map[uint]int64, len(topicIDs))
	if len(topicIDs) == 0 {
		return out, nil
	}
	var rows []struct {
		TopicID uint
		N       int64
	}
	err := r.db.WithContext(ctx).Model(&model.ForumReply{}).
		Select("topic_id, COUNT(*) AS n").
		Where("topic_id IN ?", topicIDs).
		Group("topic_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.TopicID] = row.N
	}
	return out, nil
}
