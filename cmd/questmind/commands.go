package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	contract "github.com/questmind/questmind/api/wasm"
)

func newGreetCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "greet NAME",
		Short: "Ask the module to log a greeting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := openSession(ctx, cmd, opts)
			if err != nil {
				return err
			}
			defer s.Close(ctx)

			if err := s.host.Greet(ctx, args[0]); err != nil {
				return err
			}
			return s.report(contract.ExportGreet, nil)
		},
	}
}

func newAddCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "add A B",
		Short: "Add two 32-bit integers (overflow wraps)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := parseInt32(args[0])
			if err != nil {
				return err
			}
			b, err := parseInt32(args[1])
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			s, err := openSession(ctx, cmd, opts)
			if err != nil {
				return err
			}
			defer s.Close(ctx)

			sum, err := s.host.Add(ctx, a, b)
			if err != nil {
				return err
			}
			return s.report(contract.ExportAdd, sum)
		},
	}
}

func newProcessTextCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "process-text TEXT",
		Short: "Tag and uppercase text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := openSession(ctx, cmd, opts)
			if err != nil {
				return err
			}
			defer s.Close(ctx)

			out, err := s.host.ProcessText(ctx, args[0])
			if err != nil {
				return err
			}
			return s.report(contract.ExportProcessText, out)
		},
	}
}

func newInspectCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect",
		Short: "List loaded bundles and their exports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := openSession(ctx, cmd, opts)
			if err != nil {
				return err
			}
			defer s.Close(ctx)

			infos := s.host.Inspect()
			s.logger.Debug("Inspecting bundles", zap.Int("count", len(infos)))

			if s.json {
				return writeJSON(s.out, infos)
			}

			table := tablewriter.NewWriter(s.out)
			table.Header("Name", "Version", "Target", "Runnable", "Exports")
			for _, info := range infos {
				row := []string{info.Name, info.Version, info.Target, strconv.FormatBool(info.Runnable), strings.Join(info.Exports, ", ")}
				if err := table.Append(row); err != nil {
					return err
				}
			}
			return table.Render()
		},
	}
}

func parseInt32(s string) (int32, error) {
	n, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%q is not a 32-bit integer: %w", s, err)
	}
	return int32(n), nil
}

