package service

import (
	"context"
	"errors"

	"github.com/devlog-hq/devlog/internal/config"
	mq "github.com/devlog-hq/devlog/internal/infra/queue"
	"github.com/devlog-hq/devlog/internal/modules/model"
	"github.com/devlog-hq/devlog/internal/modules/repo"
	"github.com/devlog-hq/devlog/internal/pkg/apperr"
	"github.com/devlog-hq/devlog/internal/pkg/sanitize"
	"github.com/devlog-hq/devlog/internal/telemetry"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// MaxThreadDepth bounds the nesting of a serialised comment thread.
// Replies below it are listed next to their ancestor at that depth.
const MaxThreadDepth = 32

type CommentService interface {
	AddComment(ctx context.Context, actor *model.User, in AddCommentInput) (*model.Comment, error)
	ListThread(ctx context.Context, entryID uint) ([]*CommentNode, error)
}

type AddCommentInput struct {
	EntryID  uint   `json:"-"`
	Content  string `json:"content"`
	ParentID *uint  `json:"parent_id"`
}

type CommentNode struct {
	*model.Comment
	Replies []*CommentNode `json:"replies"`
}

type commentService struct {
	r         repo.CommentRepo
	entries   repo.EntryRepo
	publisher mq.ActivityPublisher
	cfg       *config.Config
	log       *zap.Logger
}

func NewCommentService(r repo.CommentRepo, entries repo.EntryRepo, publisher mq.ActivityPublisher, cfg *config.Config, log *zap.Logger) CommentService {
	return &commentService{r: r, entries: entries, publisher: publisher, cfg: cfg, log: log}
}

func (s *commentService) AddComment(ctx context.Context, actor *model.User, in AddCommentInput) (*model.Comment, error) {
	if err := checkLen("content", in.Content, MaxContentLen); err != nil {
		return nil, err
	}
	content := sanitize.HTML(in.Content)
	if content == "" {
		return nil, apperr.Validation(apperr.CodeEmptyContent, "comment must not be empty")
	}

	entry, err := s.entries.Get(ctx, in.EntryID)
	if err != nil {
		return nil, dbErr(err, "entry")
	}

	if in.ParentID != nil {
		parent, err := s.r.Get(ctx, *in.ParentID)
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return nil, apperr.Validation(apperr.CodeInvalidParent, "parent comment %d does not exist", *in.ParentID)
		case err != nil:
			return nil, dbErr(err, "comment")
		case parent.EntryID != entry.ID:
			return nil, apperr.Validation(apperr.CodeInvalidParent, "parent comment %d belongs to another entry", *in.ParentID)
		}
	}

	c := &model.Comment{EntryID: entry.ID, UserTag: actor.DeveloperTag, Content: content, ParentID: in.ParentID}
	if err := s.r.Create(ctx, c); err != nil {
		return nil, dbErr(err, "comment")
	}

	telemetry.RecordComment(ctx, "entry")
	publishActivity(ctx, s.publisher, s.log, mq.ActivityEvent{
		Type:    mq.ActivityCommentCreated,
		Actor:   actor.DeveloperTag,
		Project: entry.ProjectName,
		EntryID: entry.ID,
		Data:    map[string]any{"comment_id": c.ID, "entry_author": entry.DeveloperTag},
	})
	return c, nil
}

func (s *commentService) ListThread(ctx context.Context, entryID uint) ([]*CommentNode, error) {
	if _, err := s.entries.Get(ctx, entryID); err != nil {
		return nil, dbErr(err, "entry")
	}
	comments, err := s.r.ListByEntry(ctx, entryID)
	if err != nil {
		return nil, dbErr(err, "comment")
	}
	return buildThread(comments, MaxThreadDepth), nil
}

// buildThread arranges comments (oldest first) into a forest of top-level
// comments. It walks with an explicit stack so thread depth never turns into
// call depth.
func buildThread(comments []*model.Comment, maxDepth int) []*CommentNode {
	nodes := make(map[uint]*CommentNode, len(comments))
	children := make(map[uint][]*CommentNode, len(comments))
	var roots []*CommentNode

	for _, c := range comments {
		nodes[c.ID] = &CommentNode{Comment: c, Replies: []*CommentNode{}}
	}
	for _, c := range comments {
		n := nodes[c.ID]
		if c.ParentID == nil || nodes[*c.ParentID] == nil {
			roots = append(roots, n)
			continue
		}
		children[*c.ParentID] = append(children[*c.ParentID], n)
	}

	type frame struct {
		node   *CommentNode
		holder *CommentNode // nil for top level
		depth  int
	}
	stack := make([]frame, 0, len(roots))
	for i := len(roots) - 1; i >= 0; i-- {
		stack = append(stack, frame{node: roots[i], depth: 1})
	}

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if f.holder != nil {
			f.holder.Replies = append(f.holder.Replies, f.node)
		}

		kids := children[f.node.ID]
		holder, depth := f.node, f.depth+1
		if f.depth >= maxDepth && f.holder != nil {
			holder, depth = f.holder, f.depth
		}
		for i := len(kids) - 1; i >= 0; i-- {
			stack = append(stack, frame{node: kids[i], holder: holder, depth: depth})
		}
	}

	if roots == nil {
		roots = []*CommentNode{}
	}
	return roots
}
