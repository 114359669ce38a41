package cli

import (
	"fmt"

	"github.com/samber/do"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/devlog-hq/devlog/internal/bootstrap"
	"github.com/devlog-hq/devlog/internal/modules/service"
)

func newSeedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create built-in reference data",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "forums",
		Short: "Create the default language tags and forum categories",
		RunE: func(cmd *cobra.Command, args []string) error {
			inj, err := boot()
			if err != nil {
				return err
			}
			defer shutdown(inj)

			n, err := bootstrap.EnsureDefaultForums(cmd.Context(), do.MustInvoke[service.ForumService](inj), do.MustInvoke[*zap.Logger](inj))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d forum categories created\n", n)
			return nil
		},
	})
	return cmd
}
