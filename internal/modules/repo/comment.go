package repo

import (
	"context"

	"github.com/devlog-hq/devlog/internal/modules/model"
	"gorm.io/gorm"
)

type CommentRepo interface {
	Create(ctx context.Context, c *model.Comment) error
	Get(ctx context.Context, id uint) (*model.Comment, error)
	ListByEntry(ctx context.Context, entryID uint) ([]*model.Comment, error)
}

type commentRepo struct{ db *gorm.DB }

func NewCommentRepo(db *gorm.DB) CommentRepo {
	return &commentRepo{db: db}
}

func (r *commentRepo) Create(ctx context.Context, c *model.Comment) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *commentRepo) Get(ctx context.Context, id uint) (*model.Comment, error) {
	var c model.Comment
	if err := r.db.WithContext(ctx).First(&c, id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// ListByEntry returns every comment on the entry, oldest first.
func (r *commentRepo) ListByEntry(ctx context.Context, entryID uint) ([]*model.Comment, error) {
	var out []*model.Comment
	err := r.db.WithContext(ctx).
		Where("entry_id = ?", entryID).
		Order("timestamp ASC, id ASC").
		Find(&out).Error
	return out, err
}
