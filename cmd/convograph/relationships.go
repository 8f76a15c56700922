package main

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/siherrmann/convograph/model"
	"github.com/spf13/cobra"
)

func newRelateCommand(opts *rootOptions) *cobra.Command {
	var minSimilarity float64
	var maxNeighbors int

	cmd := &cobra.Command{
		Use:   "relate <conversation-id>",
		Short: "Build relationship edges for one conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			c, err := opts.openForCommand(cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			edges, err := c.BuildRelationships(cmd.Context(), id, minSimilarity, maxNeighbors)
			if err != nil {
				return err
			}

			return writeJSON(cmd.OutOrStdout(), edges)
		},
	}

	cmd.Flags().Float64Var(&minSimilarity, "min-similarity", 0, "minimum cosine similarity of a neighbor (0 uses the configured default)")
	cmd.Flags().IntVar(&maxNeighbors, "max-neighbors", 0, "maximum number of neighbors (0 uses the configured default)")

	return cmd
}

func newClassifyCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "classify <source-id> <target-id>",
		Short: "Classify how two stored conversations relate",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sourceID, err := parseID(args[0])
			if err != nil {
				return err
			}
			targetID, err := parseID(args[1])
			if err != nil {
				return err
			}

			c, err := opts.openForCommand(cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			relationshipType, similarity, err := c.Classify(cmd.Context(), sourceID, targetID)
			if err != nil {
				return err
			}

			return writeJSON(cmd.OutOrStdout(), map[string]interface{}{
				"relationship_type": relationshipType,
				"similarity":        similarity,
			})
		},
	}
}

func newRelatedCommand(opts *rootOptions) *cobra.Command {
	var types []string
	var outgoing bool
	var hops int

	cmd := &cobra.Command{
		Use:   "related <conversation-id>",
		Short: "List conversations linked to a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			relationshipTypes, err := parseTypes(types)
			if err != nil {
				return err
			}

			c, err := opts.openForCommand(cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			if hops > 1 {
				results, err := c.BFSTraversal(cmd.Context(), id, hops, relationshipTypes, !outgoing)
				if err != nil {
					return err
				}
				// The start conversation is always first.
				return writeJSON(cmd.OutOrStdout(), results[1:])
			}

			results, err := c.Related(cmd.Context(), id, relationshipTypes, outgoing)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), results)
		},
	}

	cmd.Flags().StringSliceVar(&types, "type", nil, "relationship types to follow (repeatable), all if empty")
	cmd.Flags().BoolVar(&outgoing, "outgoing", false, "only follow edges leaving the conversation")
	cmd.Flags().IntVar(&hops, "hops", 1, "maximum number of edges between the conversation and a result")

	return cmd
}

func newStatsCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Count relationship edges per type",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.openForCommand(cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			counts, err := c.RelationshipTypeCounts(cmd.Context())
			if err != nil {
				return err
			}

			return writeJSON(cmd.OutOrStdout(), counts)
		},
	}
}

func parseID(value string) (uuid.UUID, error) {
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid conversation id %q: %w", value, err)
	}
	return id, nil
}

func parseTypes(values []string) ([]model.RelationshipType, error) {
	var types []model.RelationshipType
	for _, v := range values {
		t, err := model.ParseRelationshipType(strings.TrimSpace(v))
		if err != nil {
			return nil, err
		}
		types = append(types, t)
	}
	return types, nil
}
