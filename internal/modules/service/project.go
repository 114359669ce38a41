package service

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/devlog-hq/devlog/internal/config"
	mq "github.com/devlog-hq/devlog/internal/infra/queue"
	"github.com/devlog-hq/devlog/internal/modules/model"
	"github.com/devlog-hq/devlog/internal/modules/repo"
	"github.com/devlog-hq/devlog/internal/pkg/apperr"
	"github.com/devlog-hq/devlog/internal/pkg/sanitize"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	projectNamePattern   = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9\s_-]*$`)
	repositoryURLPattern = regexp.MustCompile(`^https?://github\.com/[\w.-]+/[\w.-]+`)
)

type ProjectService interface {
	Create(ctx context.Context, actor *model.User, in CreateProjectInput) (*ProjectView, error)
	Get(ctx context.Context, name string) (*ProjectView, error)
	AddMember(ctx context.Context, actor *model.User, projectName, developerTag string) error
	ListForUser(ctx context.Context, developerTag string) ([]*model.Project, error)
}

type CreateProjectInput struct {
	Name          string   `json:"name"`
	Description   string   `json:"description"`
	RepositoryURL string   `json:"repository_url"`
	Languages     []string `json:"languages"`
}

type ProjectView struct {
	*model.Project
	Members   []string `json:"members"`
	Languages []string `json:"languages"`
}

type projectService struct {
	r         repo.ProjectRepo
	users     repo.UserRepo
	publisher mq.ActivityPublisher
	cfg       *config.Config
	log       *zap.Logger
}

func NewProjectService(r repo.ProjectRepo, users repo.UserRepo, publisher mq.ActivityPublisher, cfg *config.Config, log *zap.Logger) ProjectService {
	return &projectService{r: r, users: users, publisher: publisher, cfg: cfg, log: log}
}

// NormalizeLanguages lower-cases, trims and de-duplicates language names,
// keeping the first occurrence order.
func NormalizeLanguages(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, l := range raw {
		name := strings.ToLower(sanitize.Text(l))
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

func (s *projectService) Create(ctx context.Context, actor *model.User, in CreateProjectInput) (*ProjectView, error) {
	var missing []string
	if strings.TrimSpace(in.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(in.Description) == "" {
		missing = append(missing, "description")
	}
	if strings.TrimSpace(in.RepositoryURL) == "" {
		missing = append(missing, "repository_url")
	}
	if len(missing) > 0 {
		return nil, apperr.MissingFields(missing...)
	}

	if err := checkLen("name", in.Name, MaxProjectNameLen); err != nil {
		return nil, err
	}
	if err := checkLen("description", in.Description, MaxContentLen); err != nil {
		return nil, err
	}
	name := sanitize.Text(in.Name)
	if !projectNamePattern.MatchString(name) {
		return nil, apperr.Validation(apperr.CodeInvalidFormat, "project name may only contain letters, digits, spaces, _ and -")
	}
	description := sanitize.HTML(in.Description)
	if description == "" {
		return nil, apperr.Validation(apperr.CodeEmptyContent, "description must contain text")
	}
	url := strings.TrimSpace(in.RepositoryURL)
	if !repositoryURLPattern.MatchString(url) {
		return nil, apperr.Validation(apperr.CodeInvalidFormat, "repository_url must be a GitHub repository URL")
	}
	languages := NormalizeLanguages(in.Languages)

	p := &model.Project{
		Name:          name,
		Description:   description,
		RepositoryURL: url,
		CreatedBy:     &actor.DeveloperTag,
	}
	if err := s.r.CreateWithDefaults(ctx, p, languages); err != nil {
		return nil, dbErr(err, "project")
	}

	publishActivity(ctx, s.publisher, s.log, mq.ActivityEvent{
		Type:    mq.ActivityProjectCreated,
		Actor:   actor.DeveloperTag,
		Project: p.Name,
		Data:    map[string]any{"languages": languages},
	})
	return &ProjectView{Project: p, Members: []string{actor.DeveloperTag}, Languages: languages}, nil
}

func (s *projectService) Get(ctx context.Context, name string) (*ProjectView, error) {
	p, err := s.r.Get(ctx, name)
	if err != nil {
		return nil, dbErr(err, "project")
	}
	members, err := s.r.ListMembers(ctx, name)
	if err != nil {
		return nil, dbErr(err, "project")
	}
	languages, err := s.r.ListLanguages(ctx, name)
	if err != nil {
		return nil, dbErr(err, "project")
	}
	if members == nil {
		members = []string{}
	}
	if languages == nil {
		languages = []string{}
	}
	return &ProjectView{Project: p, Members: members, Languages: languages}, nil
}

// AddMember lets an existing team member bring another developer in.
func (s *projectService) AddMember(ctx context.Context, actor *model.User, projectName, developerTag string) error {
	if _, err := s.r.Get(ctx, projectName); err != nil {
		return dbErr(err, "project")
	}
	ok, err := s.r.IsMember(ctx, projectName, actor.DeveloperTag)
	if err != nil {
		return dbErr(err, "project")
	}
	if !ok {
		return apperr.Forbidden("only members of %s can add members", projectName)
	}

	tag := strings.ToLower(strings.TrimSpace(developerTag))
	if tag == "" {
		return apperr.MissingFields("developer_tag")
	}
	if _, err := s.users.GetByDeveloperTag(ctx, tag); err != nil {
		return dbErr(err, "developer")
	}
	if err := s.r.AddMember(ctx, projectName, tag); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return apperr.Conflict("%s is already a member of %s", tag, projectName)
		}
		return dbErr(err, "project member")
	}
	return nil
}

func (s *projectService) ListForUser(ctx context.Context, developerTag string) ([]*model.Project, error) {
	projects, err := s.r.ListForUser(ctx, developerTag)
	if err != nil {
		return nil, dbErr(err, "project")
	}
	return projects, nil
}
