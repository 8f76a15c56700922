package main

import (
	"fmt"

	"github.com/siherrmann/convograph/database"
	"github.com/siherrmann/convograph/mcp"
	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func newMCPCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the conversation tools over MCP on stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// stdout carries the protocol.
			c, err := opts.open(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer c.Close()

			s := mcp.NewServer(mcp.ServerConfig{
				Service: c,
				Version: version,
			})
			return mcp.ServeStdio(s)
		},
	}
}

func newIndexCommand(opts *rootOptions) *cobra.Command {
	var m, efConstruction, lists int

	cmd := &cobra.Command{
		Use:       "index <hnsw|ivfflat>",
		Short:     "Rebuild the embedding index with another index type",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{database.IndexTypeHNSW, database.IndexTypeIVFFlat},
		RunE: func(cmd *cobra.Command, args []string) error {
			indexType := args[0]
			params := map[string]interface{}{}
			switch indexType {
			case database.IndexTypeHNSW:
				params["m"] = m
				params["ef_construction"] = efConstruction
			case database.IndexTypeIVFFlat:
				params["lists"] = lists
			default:
				return fmt.Errorf("unsupported index type %q", indexType)
			}

			c, err := opts.openForCommand(cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			if err := c.ChangeIndexType(cmd.Context(), indexType, params); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Embedding index rebuilt as %s\n", indexType)
			return nil
		},
	}

	cmd.Flags().IntVar(&m, "m", 16, "hnsw: connections per layer")
	cmd.Flags().IntVar(&efConstruction, "ef-construction", 64, "hnsw: candidate list size while building")
	cmd.Flags().IntVar(&lists, "lists", 100, "ivfflat: number of inverted lists")

	return cmd
}
