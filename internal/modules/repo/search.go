package repo

import (
	"context"
	"strings"
	"time"

	"github.com/devlog-hq/devlog/internal/modules/model"
	"gorm.io/gorm"
)

// EntryFilter is the resolved form of an entry search. Zero values mean
// "no constraint".
type EntryFilter struct {
	Project      string // case-insensitive substring
	DeveloperTag string // case-insensitive substring
	Text         string
	Projects     []string
	Users        []string
	Languages    []string
	From         *time.Time // inclusive
	Until        *time.Time // exclusive
}

type ProjectFilter struct {
	Text      string
	Languages []string
	Users     []string
}

type TopicFilter struct {
	Text      string
	Languages []string
	Projects  []string
	Users     []string
}

// Sort names one of the target's known sort fields. Unknown fields fall
// back to the target's date column.
type Sort struct {
	Field string
	Desc  bool
}

type SearchRepo interface {
	Entries(ctx context.Context, f EntryFilter, s Sort, offset, limit int) ([]*model.Entry, int64, error)
	Projects(ctx context.Context, f ProjectFilter, s Sort, offset, limit int) ([]*model.Project, int64, error)
	Topics(ctx context.Context, f TopicFilter, s Sort, offset, limit int) ([]*model.ForumTopic, int64, error)
	ProjectEntryCounts(ctx context.Context, names []string) (map[string]int64, error)
}

type searchRepo struct{ db *gorm.DB }

func NewSearchRepo(db *gorm.DB) SearchRepo {
	return &searchRepo{db: db}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(s)) + "%"
}

const likeEscape = ` ESCAPE '\'`

func (r *searchRepo) projectsWithLanguages(langs []string) *gorm.DB {
	return r.db.Table("project_tags").
		Select("project_tags.project_name").
		Joins("JOIN language_tags ON language_tags.id = project_tags.language_tag_id").
		Where("language_tags.name IN ?", langs)
}

func direction(desc bool) string {
	if desc {
		return " DESC"
	}
	return " ASC"
}

func (r *searchRepo) Entries(ctx context.Context, f EntryFilter, s Sort, offset, limit int) ([]*model.Entry, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.Entry{})

	if f.Project != "" {
		q = q.Where("LOWER(log_entries.project_name) LIKE ?"+likeEscape, containsPattern(f.Project))
	}
	if f.DeveloperTag != "" {
		q = q.Where("LOWER(log_entries.developer_tag) LIKE ?"+likeEscape, containsPattern(f.DeveloperTag))
	}
	if f.Text != "" {
		p := containsPattern(f.Text)
		q = q.Where("(LOWER(log_entries.title) LIKE ?"+likeEscape+" OR LOWER(log_entries.content) LIKE ?"+likeEscape+")", p, p)
	}
	if len(f.Projects) > 0 {
		q = q.Where("log_entries.project_name IN ?", f.Projects)
	}
	if len(f.Users) > 0 {
		q = q.Where("log_entries.developer_tag IN ?", f.Users)
	}
	if len(f.Languages) > 0 {
		q = q.Where("log_entries.project_name IN (?)", r.projectsWithLanguages(f.Languages))
	}
	if f.From != nil {
		q = q.Where("log_entries.timestamp >= ?", *f.From)
	}
	if f.Until != nil {
		q = q.Where("log_entries.timestamp < ?", *f.Until)
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	dir := direction(s.Desc)
	var order string
	switch s.Field {
	case "likes":
		order = "(SELECT COUNT(*) FROM entry_reactions er WHERE er.entry_id = log_entries.id AND er.reaction_type = 1)" + dir
	case "comments":
		order = "(SELECT COUNT(*) FROM comments c WHERE c.entry_id = log_entries.id)" + dir
	case "project":
		order = "log_entries.project_name" + dir
	default:
		order = "log_entries.timestamp" + dir
	}

	var entries []*model.Entry
	err := q.Order(order).Order("log_entries.id" + dir).Offset(offset).Limit(limit).Find(&entries).Error
	return entries, total, err
}

func (r *searchRepo) Projects(ctx context.Context, f ProjectFilter, s Sort, offset, limit int) ([]*model.Project, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.Project{})

	if f.Text != "" {
		p := containsPattern(f.Text)
		q = q.Where("(LOWER(projects.name) LIKE ?"+likeEscape+" OR LOWER(projects.description) LIKE ?"+likeEscape+")", p, p)
	}
	if len(f.Languages) > 0 {
		q = q.Where("projects.name IN (?)", r.projectsWithLanguages(f.Languages))
	}
	if len(f.Users) > 0 {
		q = q.Where("projects.name IN (?)",
			r.db.Model(&model.ProjectMember{}).Select("project_name").Where("developer_tag IN ?", f.Users))
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	dir := direction(s.Desc)
	var order string
	switch s.Field {
	case "entries":
		order = "(SELECT COUNT(*) FROM log_entries le WHERE le.project_name = projects.name)" + dir
	case "name":
		order = "projects.name" + dir
	default:
		order = "projects.created_at" + dir
	}

	var projects []*model.Project
	err := q.Order(order).Order("projects.name ASC").Offset(offset).Limit(limit).Find(&projects).Error
	return projects, total, err
}

func (r *searchRepo) Topics(ctx context.Context, f TopicFilter, s Sort, offset, limit int) ([]*model.ForumTopic, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.ForumTopic{}).
		Joins("JOIN forum_categories ON forum_categories.id = forum_topics.category_id")

	if f.Text != "" {
		p := containsPattern(f.Text)
		q = q.Where("(LOWER(forum_topics.title) LIKE ?"+likeEscape+" OR LOWER(forum_topics.content) LIKE ?"+likeEscape+")", p, p)
	}
	if len(f.Languages) > 0 {
		q = q.Where("forum_categories.language_tag_id IN (?)",
			r.db.Model(&model.LanguageTag{}).Select("id").Where("name IN ?", f.Languages))
	}
	if len(f.Projects) > 0 {
		q = q.Where("forum_categories.project_name IN ?", f.Projects)
	}
	if len(f.Users) > 0 {
		q = q.Where("forum_topics.author_tag IN ?", f.Users)
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	dir := direction(s.Desc)
	var order string
	switch s.Field {
	case "replies":
		order = "(SELECT COUNT(*) FROM forum_replies fr WHERE fr.topic_id = forum_topics.id)" + dir
	default:
		order = "forum_topics.created_at" + dir
	}

	var topics []*model.ForumTopic
	err := q.Select("forum_topics.*").Order(order).Order("forum_topics.id" + dir).Offset(offset).Limit(limit).Find(&topics).Error
	return topics, total, err
}

func (r *searchRepo) ProjectEntryCounts(ctx context.Context, names []string) (map[string]int64, error) {
	out := make(map[string]int64, len(names))
	if len(names) == 0 {
		return out, nil
	}
	var rows []struct {
		ProjectName string
		N           int64
	}
	err := r.db.WithContext(ctx).Model(&model.Entry{}).
		Select("project_name, COUNT(*) AS n").
		Where("project_name IN ?", names).
		Group("project_name").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ProjectName] = row.N
	}
	return out, nil
}
