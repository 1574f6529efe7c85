package app

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/anvil-platform/sourcemap/internal/manifest"
)

func newValidateCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a manifest file without resolving it",
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return v.BindPFlags(cmd.Flags())
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			doc, err := manifest.Load(v.GetString("file"))
			if err != nil {
				return err
			}
			in, err := doc.Build()
			if err != nil {
				return fmt.Errorf("invalid manifest: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "valid: %d repositories (%d explicit, %d index), %d requirements, mode %s\n",
				len(doc.Repositories), len(in.Set.ExplicitNonDefault()), len(in.Set.IndexAliases()), len(doc.Requirements), doc.Mode())
			return nil
		},
	}
	cmd.Flags().StringP("file", "f", "", "Path to the manifest file (required)")
	if err := cmd.MarkFlagRequired("file"); err != nil {
		panic(fmt.Errorf("mark file flag required: %w", err))
	}
	return cmd
}
