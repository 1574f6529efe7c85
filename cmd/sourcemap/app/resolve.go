package app

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/anvil-platform/sourcemap/internal/manifest"
	"github.com/anvil-platform/sourcemap/internal/report"
	"github.com/anvil-platform/sourcemap/internal/resolver"
	"github.com/anvil-platform/sourcemap/internal/rpc"
)

const outputTable = "table"

func newResolveCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Assign every package of a manifest to a repository",
		Long: `Resolve reads a manifest file (YAML or JSON) and prints which repository each direct and
indirect package must be fetched from.

With --server the manifest is resolved by a remote sourcemap-server instead of in process.`,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return v.BindPFlags(cmd.Flags())
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runResolve(cmd, v)
		},
	}

	cmd.Flags().StringP("file", "f", "", "Path to the manifest file (required)")
	cmd.Flags().Bool("strict", false, "Fail on the first package offered by more than one repository")
	cmd.Flags().StringP("output", "o", string(report.FormatJSON), "Output format: json, yaml or table")
	cmd.Flags().String("server", "", "Address of a sourcemap-server to resolve remotely")
	cmd.Flags().Duration("timeout", 10*time.Second, "Timeout for remote resolution")
	if err := cmd.MarkFlagRequired("file"); err != nil {
		panic(fmt.Errorf("mark file flag required: %w", err))
	}
	return cmd
}

func runResolve(cmd *cobra.Command, v *viper.Viper) error {
	logger := newLogger(cmd, v)

	output := strings.ToLower(v.GetString("output"))
	switch output {
	case string(report.FormatJSON), string(report.FormatYAML), outputTable:
	default:
		return fmt.Errorf("unsupported output format %q", output)
	}

	doc, err := manifest.Load(v.GetString("file"))
	if err != nil {
		return err
	}
	if v.GetBool("strict") {
		doc.Strict = true
	}

	var rep report.Report
	if server := v.GetString("server"); server != "" {
		ctx, cancel := context.WithTimeout(cmd.Context(), v.GetDuration("timeout"))
		defer cancel()
		rep, err = resolveRemote(ctx, server, doc)
	} else {
		rep, err = resolveLocal(cmd.Context(), &resolver.DefaultResolver{Logger: logger}, doc)
	}
	if err != nil {
		return err
	}
	logger.V(1).Info("resolved", "summary", rep.Summary())

	if output == outputTable {
		return renderTable(cmd.OutOrStdout(), rep)
	}
	return rep.Encode(cmd.OutOrStdout(), report.Format(output))
}

func resolveLocal(ctx context.Context, r resolver.Resolver, doc manifest.Document) (report.Report, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	in, err := doc.Build()
	if err != nil {
		return report.Report{}, fmt.Errorf("invalid manifest: %w", err)
	}
	result, err := r.Resolve(ctx, in)
	if err != nil {
		return report.Report{}, err
	}
	return report.Build(doc, in, result), nil
}

func resolveRemote(ctx context.Context, server string, doc manifest.Document) (report.Report, error) {
	conn, err := grpc.NewClient(server, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return report.Report{}, fmt.Errorf("dial %s: %w", server, err)
	}
	defer conn.Close()
	return rpc.NewClient(conn).Resolve(ctx, doc)
}

func renderTable(w io.Writer, rep report.Report) error {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Package", "Repository", "Direct", "Version"})
	table.SetAutoWrapText(false)
	for _, a := range rep.Assignments {
		direct := ""
		if a.Direct {
			direct = "yes"
		}
		version := a.Version
		if version != "" && !a.VersionAvailable {
			version += " (not listed)"
		}
		table.Append([]string{a.Package, a.Repository, direct, version})
	}
	table.Render()

	for _, c := range rep.Conflicts {
		fmt.Fprintf(w, "\n%s\n", c.Message)
	}
	if len(rep.Unresolved) > 0 {
		fmt.Fprintf(w, "\nUnresolved: %s\n", strings.Join(rep.Unresolved, ", "))
	}
	fmt.Fprintf(w, "\n%s\n", rep.Summary())
	return nil
}
