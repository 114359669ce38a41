package cli

import (
	"fmt"
	"time"

	"github.com/samber/do"
	"github.com/spf13/cobra"

	"github.com/devlog-hq/devlog/internal/bootstrap"
	"github.com/devlog-hq/devlog/internal/config"
	"github.com/devlog-hq/devlog/internal/telemetry"
)

const shutdownTimeout = 10 * time.Second

// NewRootCmd assembles the devlog command tree.
func NewRootCmd(version string) *cobra.Command {
	root := &cobra.Command{
		Use:   "devlog",
		Short: "Developer log server and maintenance tool",
		Long: `devlog records timed work entries against projects, with reactions,
threaded comments, forums and commit history.

Run "devlog serve" to start the HTTP API.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newServeCmd(),
		newMigrateCmd(),
		newSeedCmd(),
		newExportCmd(),
		newActivityCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "Show version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "devlog version %s\n", version)
			},
		},
	)
	return root
}

// boot builds the container and starts telemetry before anything opens a
// database or Redis connection, so their instrumentation hooks see the
// global providers.
func boot() (*do.Injector, error) {
	inj := bootstrap.BuildContainer()
	cfg, err := do.Invoke[*config.Config](inj)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := telemetry.Setup(cfg); err != nil {
		return nil, err
	}
	return inj, nil
}

func shutdown(inj *do.Injector) {
	bootstrap.Close(inj, shutdownTimeout)
}
