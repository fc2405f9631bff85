package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/telekom/tokenctl/pkg/tokenctl/output"
	"github.com/telekom/tokenctl/pkg/tokenctl/profile"
)

func NewListCommand() *cobra.Command {
	var outputFormat string

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List the configured profiles",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			format, err := output.ParseFormat(outputFormat)
			if err != nil {
				return err
			}

			var records []*profile.Record
			result, err := rt.store().List()
			switch {
			case errors.Is(err, profile.ErrNotFound):
				rt.Logger().Debugw("Profile directory does not exist yet", "error", err)
			case err != nil:
				return err
			default:
				records = result.Records
				if len(result.Skipped) > 0 {
					rt.Logger().Warnw("Skipped files that are not valid profiles", "files", result.Skipped)
				}
			}

			summaries := output.SummarizeProfiles(records, rt.clock.Now())
			switch format {
			case output.FormatTable, output.FormatWide:
				if len(summaries) == 0 {
					_, _ = fmt.Fprintln(rt.Writer(), "No profiles available")
					return nil
				}
				if format == output.FormatWide {
					output.WriteProfileTableWide(rt.Writer(), summaries)
				} else {
					output.WriteProfileTable(rt.Writer(), summaries)
				}
				return nil
			default:
				return output.WriteObject(rt.Writer(), format, summaries)
			}
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "output", "o", "", "Output format: table, wide, json, yaml")
	return cmd
}
