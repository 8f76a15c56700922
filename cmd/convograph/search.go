package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/siherrmann/convograph"
	"github.com/siherrmann/convograph/core/fusion"
	"github.com/siherrmann/convograph/model"
	"github.com/spf13/cobra"
)

type searchOptions struct {
	mode     string
	limit    int
	project  string
	platform string
	from     string
	to       string
	asJSON   bool
}

func newSearchCommand(opts *rootOptions) *cobra.Command {
	so := &searchOptions{}

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search conversations with fused keyword and semantic ranking",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filters, err := so.filters()
			if err != nil {
				return err
			}

			c, err := opts.openForCommand(cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			query := strings.Join(args, " ")
			response, err := c.SearchWithMode(cmd.Context(), so.mode, query, filters, so.limit)
			if err != nil {
				return err
			}

			if so.asJSON {
				return writeJSON(cmd.OutOrStdout(), response)
			}
			return printSearchResponse(cmd, c, response)
		},
	}

	cmd.Flags().StringVar(&so.mode, "mode", fusion.StrategyHybrid, "search mode: hybrid, lexical or vector")
	cmd.Flags().IntVarP(&so.limit, "limit", "n", 10, "number of results")
	cmd.Flags().StringVar(&so.project, "project", "", "only conversations of this project")
	cmd.Flags().StringVar(&so.platform, "platform", "", "only conversations from this platform")
	cmd.Flags().StringVar(&so.from, "from", "", "only conversations started at or after this date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&so.to, "to", "", "only conversations started before this date (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&so.asJSON, "json", false, "print the full fused result as JSON")

	return cmd
}

func (so *searchOptions) filters() (model.Filters, error) {
	filters := model.Filters{
		Project:  so.project,
		Platform: so.platform,
	}

	from, err := parseDate(so.from)
	if err != nil {
		return filters, fmt.Errorf("invalid --from: %w", err)
	}
	to, err := parseDate(so.to)
	if err != nil {
		return filters, fmt.Errorf("invalid --to: %w", err)
	}
	if from != nil && to != nil && !from.Before(*to) {
		return filters, fmt.Errorf("--from must be before --to")
	}
	filters.From = from
	filters.To = to

	return filters, nil
}

func parseDate(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func printSearchResponse(cmd *cobra.Command, c *convograph.Convograph, response *model.SearchResponse) error {
	out := cmd.OutOrStdout()
	title := color.New(color.Bold)
	dim := color.New(color.FgHiBlack)
	warn := color.New(color.FgYellow)

	for source, reason := range response.Omitted {
		warn.Fprintf(cmd.ErrOrStderr(), "%s search omitted: %s\n", source, reason)
	}
	if len(response.Results) == 0 {
		fmt.Fprintln(out, "No conversations found.")
		return nil
	}

	for i, result := range response.Results {
		conversation, err := c.Conversation(cmd.Context(), result.RecordID)
		if err != nil {
			return err
		}
		title.Fprintf(out, "%2d. %s\n", i+1, conversation.Title)
		dim.Fprintf(out, "    %s  %s  score %.4f  via %s\n",
			result.RecordID,
			conversation.StartedAt.Format(time.DateOnly),
			result.FusedScore,
			joinSources(result.ContributingSources),
		)
		writeTopics(out, conversation.Topics)
	}

	return nil
}

func joinSources(sources []model.Source) string {
	names := make([]string, 0, len(sources))
	for _, s := range sources {
		names = append(names, string(s))
	}
	return strings.Join(names, "+")
}

func writeTopics(out io.Writer, topics []string) {
	if len(topics) == 0 {
		return
	}
	color.New(color.FgCyan).Fprintf(out, "    %s\n", strings.Join(topics, ", "))
}
