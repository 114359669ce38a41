package cli

import (
	"fmt"
	"io"

	"github.com/bytedance/sonic"
	"github.com/samber/do"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/devlog-hq/devlog/internal/modules/repo"
	"github.com/devlog-hq/devlog/internal/modules/service"
)

func newExportCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "export <developer_tag>",
		Short: "Print everything stored about one account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "json" && format != "yaml" {
				return fmt.Errorf("unsupported format %q (json or yaml)", format)
			}
			tag, err := service.NormalizeDeveloperTag(args[0])
			if err != nil {
				return err
			}

			inj, err := boot()
			if err != nil {
				return err
			}
			defer shutdown(inj)

			user, err := do.MustInvoke[repo.UserRepo](inj).GetByDeveloperTag(cmd.Context(), tag)
			if err != nil {
				return fmt.Errorf("find %s: %w", tag, err)
			}
			snap, err := do.MustInvoke[service.AccountService](inj).ExportUserData(cmd.Context(), user)
			if err != nil {
				return err
			}
			return writeSnapshot(cmd.OutOrStdout(), snap, format)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "json", "output format: json or yaml")
	return cmd
}

func writeSnapshot(w io.Writer, snap *service.ExportSnapshot, format string) error {
	var (
		b   []byte
		err error
	)
	if format == "yaml" {
		b, err = yaml.Marshal(snap)
	} else {
		b, err = sonic.ConfigStd.MarshalIndent(snap, "", "  ")
		b = append(b, '\n')
	}
	if err != nil {
		return fmt.Errorf("encode export: %w", err)
	}
	_, err = w.Write(b)
	return err
}
