// Package app provides the sourcemap command tree.
package app

import (
	"fmt"
	"strings"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"
)

// EnvPrefix prefixes environment variables that override flags, e.g. SOURCEMAP_STRICT.
const EnvPrefix = "SOURCEMAP"

// version is stamped at build time.
var version = "dev"

// NewRootCmd creates the root command. Each call has its own configuration, so tests can build
// independent command trees.
func NewRootCmd() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	rootCmd := &cobra.Command{
		Use:   "sourcemap",
		Short: "Decide which repository every package of a project is fetched from",
		Long: `sourcemap reads a project's repositories and resolved requirements and assigns every
direct and indirect package to exactly one repository, reporting packages that several
repositories claim.`,
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	if err := v.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		panic(fmt.Errorf("bind debug flag: %w", err))
	}

	rootCmd.AddCommand(newResolveCmd(v))
	rootCmd.AddCommand(newValidateCmd(v))
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

// newLogger writes structured logs to the command's stderr.
func newLogger(cmd *cobra.Command, v *viper.Viper) logr.Logger {
	return zap.New(
		zap.UseDevMode(v.GetBool("debug")),
		zap.WriteTo(cmd.ErrOrStderr()),
	)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "sourcemap %s\n", version)
		},
	}
}
