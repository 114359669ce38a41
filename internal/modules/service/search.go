package service

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/devlog-hq/devlog/internal/config"
	"github.com/devlog-hq/devlog/internal/modules/model"
	"github.com/devlog-hq/devlog/internal/modules/repo"
	"github.com/devlog-hq/devlog/internal/pkg/apperr"
	"github.com/devlog-hq/devlog/internal/pkg/paging"
	"go.uber.org/zap"
)

const DateLayout = "2006-01-02"

type SearchService interface {
	// SimpleEntries requires at least one of project, developer_tag or date.
	SimpleEntries(ctx context.Context, viewer *model.User, q SimpleEntryQuery) (*EntryPage, error)
	Entries(ctx context.Context, viewer *model.User, q EntryQuery) (*EntryPage, error)
	Projects(ctx context.Context, q ProjectQuery) (*ProjectPage, error)
	Forums(ctx context.Context, q TopicQuery) (*TopicSearchPage, error)
}

type SimpleEntryQuery struct {
	Project      string      `form:"project"`
	DeveloperTag string      `form:"developer_tag"`
	Date         string      `form:"date"`
	Page         paging.Page `form:"-"`
}

type EntryQuery struct {
	Text      string      `form:"text"`
	Projects  []string    `form:"projects"`
	Users     []string    `form:"users"`
	Languages []string    `form:"languages"`
	DateFrom  string      `form:"date_from"`
	DateTo    string      `form:"date_to"`
	SortBy    string      `form:"sort_by"`
	Order     string      `form:"order"`
	Page      paging.Page `form:"-"`
}

type ProjectQuery struct {
	Text      string      `form:"text"`
	Languages []string    `form:"languages"`
	Users     []string    `form:"users"`
	SortBy    string      `form:"sort_by"`
	Order     string      `form:"order"`
	Page      paging.Page `form:"-"`
}

type TopicQuery struct {
	Text      string      `form:"text"`
	Languages []string    `form:"languages"`
	Projects  []string    `form:"projects"`
	Users     []string    `form:"users"`
	SortBy    string      `form:"sort_by"`
	Order     string      `form:"order"`
	Page      paging.Page `form:"-"`
}

type ProjectSummary struct {
	*model.Project
	EntryCount int64 `json:"entry_count"`
}

type ProjectPage struct {
	Items []*ProjectSummary `json:"items"`
	paging.Meta
}

type TopicSearchPage struct {
	Items []*TopicView `json:"items"`
	paging.Meta
}

type searchService struct {
	r       repo.SearchRepo
	entries repo.EntryRepo
	forums  repo.ForumRepo
	cfg     *config.Config
	log     *zap.Logger
}

func NewSearchService(r repo.SearchRepo, entries repo.EntryRepo, forums repo.ForumRepo, cfg *config.Config, log *zap.Logger) SearchService {
	return &searchService{r: r, entries: entries, forums: forums, cfg: cfg, log: log}
}

// ParseDate reads a YYYY-MM-DD day as midnight UTC.
func ParseDate(field, raw string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, strings.TrimSpace(raw), time.UTC)
	if err != nil {
		e := apperr.Validation(apperr.CodeInvalidDate, "%s must be YYYY-MM-DD", field)
		e.Fields = []string{field}
		return time.Time{}, e
	}
	return t, nil
}

// dateWindow turns optional inclusive day bounds into [from, until).
func dateWindow(rawFrom, rawTo string) (from, until *time.Time, err error) {
	if strings.TrimSpace(rawFrom) != "" {
		t, err := ParseDate("date_from", rawFrom)
		if err != nil {
			return nil, nil, err
		}
		from = &t
	}
	if strings.TrimSpace(rawTo) != "" {
		t, err := ParseDate("date_to", rawTo)
		if err != nil {
			return nil, nil, err
		}
		end := t.AddDate(0, 0, 1)
		until = &end
	}
	return from, until, nil
}

// Sort fields each target understands. An empty field means the target's
// date column in the requested order; an unknown one means newest first.
var (
	entrySortFields   = []string{"timestamp", "likes", "comments", "project"}
	projectSortFields = []string{"created_at", "entries", "name"}
	topicSortFields   = []string{"created_at", "replies"}
)

func sortOf(field, order string, allowed []string) repo.Sort {
	field = strings.ToLower(strings.TrimSpace(field))
	if field != "" && !slices.Contains(allowed, field) {
		return repo.Sort{Desc: true}
	}
	return repo.Sort{
		Field: field,
		Desc:  !strings.EqualFold(strings.TrimSpace(order), "asc"),
	}
}

// cleanList drops blank values. lower also lower-cases them.
func cleanList(in []string, lower bool) []string {
	var out []string
	for _, v := range in {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if lower {
				part = strings.ToLower(part)
			}
			out = append(out, part)
		}
	}
	return out
}

func (s *searchService) entryPage(ctx context.Context, viewer *model.User, f repo.EntryFilter, sort repo.Sort, page paging.Page) (*EntryPage, error) {
	page = page.Normalize()
	found, total, err := s.r.Entries(ctx, f, sort, page.Offset(), page.Limit())
	if err != nil {
		return nil, dbErr(err, "entry")
	}
	views, err := attachCounts(ctx, s.entries, viewer, found)
	if err != nil {
		return nil, err
	}
	return &EntryPage{Items: views, Meta: paging.NewMeta(page, total)}, nil
}

func (s *searchService) SimpleEntries(ctx context.Context, viewer *model.User, q SimpleEntryQuery) (*EntryPage, error) {
	f := repo.EntryFilter{
		Project:      strings.TrimSpace(q.Project),
		DeveloperTag: strings.TrimSpace(q.DeveloperTag),
	}
	date := strings.TrimSpace(q.Date)
	if f.Project == "" && f.DeveloperTag == "" && date == "" {
		return nil, apperr.Validation(apperr.CodeNoFilterProvided, "provide at least one of project, developer_tag or date")
	}
	if date != "" {
		day, err := ParseDate("date", date)
		if err != nil {
			return nil, err
		}
		next := day.AddDate(0, 0, 1)
		f.From, f.Until = &day, &next
	}
	return s.entryPage(ctx, viewer, f, repo.Sort{Desc: true}, q.Page)
}

func (s *searchService) Entries(ctx context.Context, viewer *model.User, q EntryQuery) (*EntryPage, error) {
	from, until, err := dateWindow(q.DateFrom, q.DateTo)
	if err != nil {
		return nil, err
	}
	f := repo.EntryFilter{
		Text:      strings.TrimSpace(q.Text),
		Projects:  cleanList(q.Projects, false),
		Users:     cleanList(q.Users, true),
		Languages: cleanList(q.Languages, true),
		From:      from,
		Until:     until,
	}
	return s.entryPage(ctx, viewer, f, sortOf(q.SortBy, q.Order, entrySortFields), q.Page)
}

func (s *searchService) Projects(ctx context.Context, q ProjectQuery) (*ProjectPage, error) {
	page := q.Page.Normalize()
	f := repo.ProjectFilter{
		Text:      strings.TrimSpace(q.Text),
		Languages: cleanList(q.Languages, true),
		Users:     cleanList(q.Users, true),
	}
	found, total, err := s.r.Projects(ctx, f, sortOf(q.SortBy, q.Order, projectSortFields), page.Offset(), page.Limit())
	if err != nil {
		return nil, dbErr(err, "project")
	}

	names := make([]string, 0, len(found))
	for _, p := range found {
		names = append(names, p.Name)
	}
	counts, err := s.r.ProjectEntryCounts(ctx, names)
	if err != nil {
		return nil, dbErr(err, "project")
	}
	items := make([]*ProjectSummary, 0, len(found))
	for _, p := range found {
		items = append(items, &ProjectSummary{Project: p, EntryCount: counts[p.Name]})
	}
	return &ProjectPage{Items: items, Meta: paging.NewMeta(page, total)}, nil
}

func (s *searchService) Forums(ctx context.Context, q TopicQuery) (*TopicSearchPage, error) {
	page := q.Page.Normalize()
	f := repo.TopicFilter{
		Text:      strings.TrimSpace(q.Text),
		Languages: cleanList(q.Languages, true),
		Projects:  cleanList(q.Projects, false),
		Users:     cleanList(q.Users, true),
	}
	found, total, err := s.r.Topics(ctx, f, sortOf(q.SortBy, q.Order, topicSortFields), page.Offset(), page.Limit())
	if err != nil {
		return nil, dbErr(err, "topic")
	}

	ids := make([]uint, 0, len(found))
	for _, t := range found {
		ids = append(ids, t.ID)
	}
	counts, err := s.forums.ReplyCounts(ctx, ids)
	if err != nil {
		return nil, dbErr(err, "reply")
	}
	items := make([]*TopicView, 0, len(found))
	for _, t := range found {
		items = append(items, &TopicView{ForumTopic: t, ReplyCount: counts[t.ID]})
	}
	return &TopicSearchPage{Items: items, Meta: paging.NewMeta(page, total)}, nil
}
