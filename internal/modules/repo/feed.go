package repo

import (
	"context"
	"time"

	"github.com/devlog-hq/devlog/internal/modules/model"
	"gorm.io/gorm"
)

type FeedRepo interface {
	UserStats(ctx context.Context, developerTag string) (*UserStats, error)
	RepliesOnTopicsOf(ctx context.Context, developerTag string, limit int) ([]*ReplyActivity, error)
	CommentsOnEntriesOf(ctx context.Context, developerTag string, limit int) ([]*CommentActivity, error)
}

type UserStats struct {
	Projects      int64 `json:"projects"`
	Entries       int64 `json:"entries"`
	TotalLikes    int64 `json:"total_likes"`
	TotalDislikes int64 `json:"total_dislikes"`
}

type ReplyActivity struct {
	ReplyID    uint      `json:"reply_id"`
	TopicID    uint      `json:"topic_id"`
	TopicTitle string    `json:"topic_title"`
	AuthorTag  string    `json:"author_tag"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
}

type CommentActivity struct {
	CommentID  uint      `json:"comment_id"`
	EntryID    uint      `json:"entry_id"`
	EntryTitle string    `json:"entry_title"`
	UserTag    string    `json:"user_tag"`
	Content    string    `json:"content"`
	Timestamp  time.Time `json:"timestamp"`
}

type feedRepo struct{ db *gorm.DB }

func NewFeedRepo(db *gorm.DB) FeedRepo {
	return &feedRepo{db: db}
}

func (r *feedRepo) UserStats(ctx context.Context, tag string) (*UserStats, error) {
	db := r.db.WithContext(ctx)
	out := &UserStats{}

	if err := db.Model(&model.ProjectMember{}).Where("developer_tag = ?", tag).Count(&out.Projects).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&model.Entry{}).Where("developer_tag = ?", tag).Count(&out.Entries).Error; err != nil {
		return nil, err
	}

	var rows []struct {
		ReactionType model.ReactionKind
		N            int64
	}
	err := db.Model(&model.Reaction{}).
		Select("entry_reactions.reaction_type, COUNT(*) AS n").
		Joins("JOIN log_entries ON log_entries.id = entry_reactions.entry_id").
		Where("log_entries.developer_tag = ?", tag).
		Group("entry_reactions.reaction_type").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		switch row.ReactionType {
		case model.ReactionLike:
			out.TotalLikes = row.N
		case model.ReactionDislike:
			out.TotalDislikes = row.N
		}
	}
	return out, nil
}

func (r *feedRepo) RepliesOnTopicsOf(ctx context.Context, tag string, limit int) ([]*ReplyActivity, error) {
	var out []*ReplyActivity
	err := r.db.WithContext(ctx).Model(&model.ForumReply{}).
		Select("forum_replies.id AS reply_id, forum_replies.topic_id, forum_topics.title AS topic_title, "+
			"forum_replies.author_tag, forum_replies.content, forum_replies.created_at").
		Joins("JOIN forum_topics ON forum_topics.id = forum_replies.topic_id").
		Where("forum_topics.author_tag = ? AND forum_replies.author_tag <> ?", tag, tag).
		Order("forum_replies.created_at DESC, forum_replies.id DESC").
		Limit(limit).
		Scan(&out).Error
	return out, err
}

func (r *feedRepo) CommentsOnEntriesOf(ctx context.Context, tag string, limit int) ([]*CommentActivity, error) {
	var out []*CommentActivity
	err := r.db.WithContext(ctx).Model(&model.Comment{}).
		Select("comments.id AS comment_id, comments.entry_id, log_entries.title AS entry_title, "+
			"comments.user_tag, comments.content, comments.timestamp").
		Joins("JOIN log_entries ON log_entries.id = comments.entry_id").
		Where("log_entries.developer_tag = ? AND comments.user_tag <> ?", tag, tag).
		Order("comments.timestamp DESC, comments.id DESC").
		Limit(limit).
		Scan(&out).Error
	return out, err
}
