package repo

import (
	"context"

	"github.com/devlog-hq/devlog/internal/modules/model"
	"gorm.io/gorm"
)

type AccountRepo interface {
	// DeleteAccount removes the user and everything that depends on them in
	// a single transaction. Nothing is left behind if any step fails.
	DeleteAccount(ctx context.Context, developerTag string) error

	EntriesBy(ctx context.Context, developerTag string) ([]*model.Entry, error)
	CommentsBy(ctx context.Context, developerTag string) ([]*model.Comment, error)
	TopicsBy(ctx context.Context, developerTag string) ([]*model.ForumTopic, error)
	RepliesBy(ctx context.Context, developerTag string) ([]*model.ForumReply, error)
	MembershipsOf(ctx context.Context, developerTag string) ([]*model.ProjectMember, error)
	EntryCounts(ctx context.Context, ids []uint) (map[uint]EntryCounts, error)
}

// inChunk bounds the number of bind variables per IN list.
const inChunk = 500

type accountRepo struct{ db *gorm.DB }

func NewAccountRepo(db *gorm.DB) AccountRepo {
	return &accountRepo{db: db}
}

func (r *accountRepo) DeleteAccount(ctx context.Context, tag string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ownEntries := func() *gorm.DB {
			return tx.Model(&model.Entry{}).Select("id").Where("developer_tag = ?", tag)
		}
		ownTopics := func() *gorm.DB {
			return tx.Model(&model.ForumTopic{}).Select("id").Where("author_tag = ?", tag)
		}

		// 1. reactions by the user and on the user's entries
		if err := tx.Where("user_tag = ? OR entry_id IN (?)", tag, ownEntries()).
			Delete(&model.Reaction{}).Error; err != nil {
			return err
		}

		// 2. comments by the user, on the user's entries, and every reply beneath them
		var roots []uint
		if err := tx.Model(&model.Comment{}).
			Where("user_tag = ? OR entry_id IN (?)", tag, ownEntries()).
			Pluck("id", &roots).Error; err != nil {
			return err
		}
		all, err := commentDescendants(tx, roots)
		if err != nil {
			return err
		}
		for start := 0; start < len(all); start += inChunk {
			end := min(start+inChunk, len(all))
			if err := tx.Where("id IN ?", all[start:end]).Delete(&model.Comment{}).Error; err != nil {
				return err
			}
		}

		// 3. forum replies by the user and on the user's topics
		if err := tx.Where("author_tag = ? OR topic_id IN (?)", tag, ownTopics()).
			Delete(&model.ForumReply{}).Error; err != nil {
			return err
		}

		// 4. forum topics
		if err := tx.Where("author_tag = ?", tag).Delete(&model.ForumTopic{}).Error; err != nil {
			return err
		}

		// 5. entries
		if err := tx.Where("developer_tag = ?", tag).Delete(&model.Entry{}).Error; err != nil {
			return err
		}

		// 6. memberships; projects they created stay but lose their creator
		if err := tx.Where("developer_tag = ?", tag).Delete(&model.ProjectMember{}).Error; err != nil {
			return err
		}
		if err := tx.Model(&model.Project{}).Where("created_by = ?", tag).
			Update("created_by", nil).Error; err != nil {
			return err
		}

		// 7. the user
		res := tx.Where("developer_tag = ?", tag).Delete(&model.User{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// commentDescendants expands roots to the full set of comment ids below
// them, walking one tree level per query.
func commentDescendants(tx *gorm.DB, roots []uint) ([]uint, error) {
	seen := make(map[uint]struct{}, len(roots))
	all := make([]uint, 0, len(roots))
	frontier := make([]uint, 0, len(roots))
	for _, id := range roots {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			all = append(all, id)
			frontier = append(frontier, id)
		}
	}

	for len(frontier) > 0 {
		var next []uint
		for start := 0; start < len(frontier); start += inChunk {
			end := min(start+inChunk, len(frontier))
			var children []uint
			if err := tx.Model(&model.Comment{}).
				Where("parent_id IN ?", frontier[start:end]).
				Pluck("id", &children).Error; err != nil {
				return nil, err
			}
			for _, id := range children {
				if _, ok := seen[id]; ok {
					continue
				}
				seen[id] = struct{}{}
				all = append(all, id)
				next = append(next, id)
			}
		}
		frontier = next
	}
	return all, nil
}

func (r *accountRepo) EntriesBy(ctx context.Context, tag string) ([]*model.Entry, error) {
	var out []*model.Entry
	err := r.db.WithContext(ctx).Where("developer_tag = ?", tag).Order("timestamp DESC, id DESC").Find(&out).Error
	return out, err
}

func (r *accountRepo) CommentsBy(ctx context.Context, tag string) ([]*model.Comment, error) {
	var out []*model.Comment
	err := r.db.WithContext(ctx).Where("user_tag = ?", tag).Order("timestamp DESC, id DESC").Find(&out).Error
	return out, err
}

func (r *accountRepo) TopicsBy(ctx context.Context, tag string) ([]*model.ForumTopic, error) {
	var out []*model.ForumTopic
	err := r.db.WithContext(ctx).Where("author_tag = ?", tag).Order("created_at DESC, id DESC").Find(&out).Error
	return out, err
}

func (r *accountRepo) RepliesBy(ctx context.Context, tag string) ([]*model.ForumReply, error) {
	var out []*model.ForumReply
	err := r.db.WithContext(ctx).Where("author_tag = ?", tag).Order("created_at DESC, id DESC").Find(&out).Error
	return out, err
}

func (r *accountRepo) MembershipsOf(ctx context.Context, tag string) ([]*model.ProjectMember, error) {
	var out []*model.ProjectMember
	err := r.db.WithContext(ctx).Where("developer_tag = ?", tag).Order("project_name ASC").Find(&out).Error
	return out, err
}

func (r *accountRepo) EntryCounts(ctx context.Context, ids []uint) (map[uint]EntryCounts, error) {
	return entryCounts(r.db.WithContext(ctx), ids, "")
}
