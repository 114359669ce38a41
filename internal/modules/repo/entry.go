package repo

import (
	"context"

	"github.com/devlog-hq/devlog/internal/modules/model"
	"gorm.io/gorm"
)

type EntryRepo interface {
	Create(ctx context.Context, e *model.Entry) error
	Get(ctx context.Context, id uint) (*model.Entry, error)
	// Delete removes the entry with its reactions and comment tree.
	Delete(ctx context.Context, id uint) error
	ListRecent(ctx context.Context, offset, limit int) ([]*model.Entry, int64, error)
	ListByDeveloper(ctx context.Context, developerTag string, limit int) ([]*model.Entry, error)
	Counts(ctx context.Context, ids []uint, viewerTag string) (map[uint]EntryCounts, error)
}

type EntryCounts struct {
	Likes        int64              `json:"likes_count"`
	Dislikes     int64              `json:"dislikes_count"`
	Comments     int64              `json:"comments_count"`
	UserReaction model.ReactionKind `json:"-"`
}

type entryRepo struct{ db *gorm.DB }

func NewEntryRepo(db *gorm.DB) EntryRepo {
	return &entryRepo{db: db}
}

func (r *entryRepo) Create(ctx context.Context, e *model.Entry) error {
	return r.db.WithContext(ctx).Create(e).Error
}

func (r *entryRepo) Get(ctx context.Context, id uint) (*model.Entry, error) {
	var e model.Entry
	if err := r.db.WithContext(ctx).First(&e, id).Error; err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *entryRepo) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("entry_id = ?", id).Delete(&model.Reaction{}).Error; err != nil {
			return err
		}
		if err := tx.Where("entry_id = ?", id).Delete(&model.Comment{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&model.Entry{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

func (r *entryRepo) ListRecent(ctx context.Context, offset, limit int) ([]*model.Entry, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.Entry{}).Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var entries []*model.Entry
	err := q.Order("timestamp DESC, id DESC").Offset(offset).Limit(limit).Find(&entries).Error
	return entries, total, err
}

func (r *entryRepo) ListByDeveloper(ctx context.Context, developerTag string, limit int) ([]*model.Entry, error) {
	var entries []*model.Entry
	q := r.db.WithContext(ctx).Where("developer_tag = ?", developerTag).Order("timestamp DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	return entries, q.Find(&entries).Error
}

func (r *entryRepo) Counts(ctx context.Context, ids []uint, viewerTag string) (map[uint]EntryCounts, error) {
	return entryCounts(r.db.WithContext(ctx), ids, viewerTag)
}

// entryCounts fills like/dislike/comment counts for a page of entries with
// one grouped query per table instead of one query per entry.
func entryCounts(db *gorm.DB, ids []uint, viewerTag string) (map[uint]EntryCounts, error) {
	out := make(map[uint]EntryCounts, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	for _, id := range ids {
		out[id] = EntryCounts{}
	}

	var reactions []struct {
		EntryID      uint
		ReactionType model.ReactionKind
		N            int64
	}
	err := db.Model(&model.Reaction{}).
		Select("entry_id, reaction_type, COUNT(*) AS n").
		Where("entry_id IN ?", ids).
		Group("entry_id, reaction_type").
		Scan(&reactions).Error
	if err != nil {
		return nil, err
	}
	for _, row := range reactions {
		c := out[row.EntryID]
		switch row.ReactionType {
		case model.ReactionLike:
			c.Likes = row.N
		case model.ReactionDislike:
			c.Dislikes = row.N
		}
		out[row.EntryID] = c
	}

	var comments []struct {
		EntryID uint
		N       int64
	}
	err = db.Model(&model.Comment{}).
		Select("entry_id, COUNT(*) AS n").
		Where("entry_id IN ?", ids).
		Group("entry_id").
		Scan(&comments).Error
	if err != nil {
		return nil, err
	}
	for _, row := range comments {
		c := out[row.EntryID]
		c.Comments = row.N
		out[row.EntryID] = c
	}

	if viewerTag != "" {
		var mine []model.Reaction
		err = db.Where("entry_id IN ? AND user_tag = ?", ids, viewerTag).Find(&mine).Error
		if err != nil {
			return nil, err
		}
		for _, rr := range mine {
			c := out[rr.EntryID]
			c.UserReaction = rr.ReactionType
			out[rr.EntryID] = c
		}
	}
	return out, nil
}
