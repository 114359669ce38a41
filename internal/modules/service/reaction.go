package service

import (
	"context"
	"strings"

	"github.com/devlog-hq/devlog/internal/config"
	mq "github.com/devlog-hq/devlog/internal/infra/queue"
	"github.com/devlog-hq/devlog/internal/modules/model"
	"github.com/devlog-hq/devlog/internal/modules/repo"
	"github.com/devlog-hq/devlog/internal/pkg/apperr"
	"github.com/devlog-hq/devlog/internal/telemetry"
	"go.uber.org/zap"
)

type ReactionService interface {
	// Toggle applies the none/like/dislike transition for actor on the entry.
	Toggle(ctx context.Context, actor *model.User, entryID uint, kind string) (*ReactionResult, error)
}

type ReactionResult struct {
	Likes        int64  `json:"likes_count"`
	Dislikes     int64  `json:"dislikes_count"`
	UserReaction string `json:"user_reaction"`
}

type reactionService struct {
	r         repo.ReactionRepo
	publisher mq.ActivityPublisher
	cfg       *config.Config
	log       *zap.Logger
}

func NewReactionService(r repo.ReactionRepo, publisher mq.ActivityPublisher, cfg *config.Config, log *zap.Logger) ReactionService {
	return &reactionService{r: r, publisher: publisher, cfg: cfg, log: log}
}

func (s *reactionService) Toggle(ctx context.Context, actor *model.User, entryID uint, kind string) (*ReactionResult, error) {
	k, ok := model.ParseReactionKind(strings.ToLower(strings.TrimSpace(kind)))
	if !ok {
		return nil, apperr.Validation(apperr.CodeInvalidReaction, "reaction must be like or dislike")
	}

	res, err := s.r.Toggle(ctx, entryID, actor.DeveloperTag, k)
	if err != nil {
		return nil, dbErr(err, "entry")
	}

	out := &ReactionResult{Likes: res.Likes, Dislikes: res.Dislikes, UserReaction: res.UserReaction.String()}
	telemetry.RecordReaction(ctx, out.UserReaction)
	publishActivity(ctx, s.publisher, s.log, mq.ActivityEvent{
		Type:    mq.ActivityReactionToggled,
		Actor:   actor.DeveloperTag,
		EntryID: entryID,
		Data:    map[string]any{"requested": k.String(), "result": out.UserReaction},
	})
	return out, nil
}
