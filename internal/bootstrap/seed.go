package bootstrap

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/devlog-hq/devlog/internal/modules/service"
)

// EnsureDefaultForums creates the built-in language tags and their forum
// categories. Existing rows are left alone.
func EnsureDefaultForums(ctx context.Context, forums service.ForumService, log *zap.Logger) (int, error) {
	n, err := forums.EnsureDefaultLanguageForums(ctx)
	if err != nil {
		return 0, fmt.Errorf("seed language forums: %w", err)
	}
	if n == 0 {
		log.Debug("language forums already present")
	}
	return n, nil
}
