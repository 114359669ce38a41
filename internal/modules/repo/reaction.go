package repo

import (
	"context"
	"errors"
	"time"

	"github.com/devlog-hq/devlog/internal/modules/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ReactionRepo interface {
	// Toggle applies the reaction transition for (entryID, userTag) and
	// returns the resulting counts, all inside one transaction.
	Toggle(ctx context.Context, entryID uint, userTag string, kind model.ReactionKind) (*ToggleResult, error)
	Counts(ctx context.Context, entryID uint, viewerTag string) (*EntryCounts, error)
}

type ToggleResult struct {
	Likes        int64              `json:"likes"`
	Dislikes     int64              `json:"dislikes"`
	UserReaction model.ReactionKind `json:"-"`
}

type reactionRepo struct{ db *gorm.DB }

func NewReactionRepo(db *gorm.DB) ReactionRepo {
	return &reactionRepo{db: db}
}

func (r *reactionRepo) Toggle(ctx context.Context, entryID uint, userTag string, kind model.ReactionKind) (*ToggleResult, error) {
	res, err := r.toggleOnce(ctx, entryID, userTag, kind)
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// a concurrent first reaction won the insert; the retry sees its row
		res, err = r.toggleOnce(ctx, entryID, userTag, kind)
	}
	return res, err
}

func (r *reactionRepo) toggleOnce(ctx context.Context, entryID uint, userTag string, kind model.ReactionKind) (*ToggleResult, error) {
	var out ToggleResult
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		lock := tx
		if tx.Dialector.Name() == "postgres" {
			lock = tx.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		var entry model.Entry
		if err := lock.Select("id").Where("id = ?", entryID).First(&entry).Error; err != nil {
			return err
		}

		// A change of mind is delete then insert, never an in-place update.
		var existing model.Reaction
		found := true
		if err := tx.Where("entry_id = ? AND user_tag = ?", entryID, userTag).First(&existing).Error; err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			found = false
		}
		if found {
			if err := tx.Delete(&existing).Error; err != nil {
				return err
			}
			if existing.ReactionType == kind {
				out.UserReaction = model.ReactionNone
			}
		}

		if !found || existing.ReactionType != kind {
			if err := tx.Create(&model.Reaction{
				EntryID:      entryID,
				UserTag:      userTag,
				ReactionType: kind,
				Timestamp:    time.Now().UTC(),
			}).Error; err != nil {
				return err
			}
			out.UserReaction = kind
		}

		counts, err := entryCounts(tx, []uint{entryID}, "")
		if err != nil {
			return err
		}
		out.Likes = counts[entryID].Likes
		out.Dislikes = counts[entryID].Dislikes
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *reactionRepo) Counts(ctx context.Context, entryID uint, viewerTag string) (*EntryCounts, error) {
	m, err := entryCounts(r.db.WithContext(ctx), []uint{entryID}, viewerTag)
	if err != nil {
		return nil, err
	}
	c := m[entryID]
	return &c, nil
}
