package service

import (
	"context"
	"time"

	mq "github.com/devlog-hq/devlog/internal/infra/queue"
	"go.uber.org/zap"
)

// publishActivity sends ev after the write has committed. A broker failure
// is logged and never surfaces to the caller.
func publishActivity(ctx context.Context, pub mq.ActivityPublisher, log *zap.Logger, ev mq.ActivityEvent) {
	if pub == nil {
		return
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	if err := pub.PublishActivity(ctx, ev); err != nil {
		log.Error("failed to publish activity",
			zap.Error(err),
			zap.String("type", string(ev.Type)),
			zap.String("actor", ev.Actor),
		)
	}
}
