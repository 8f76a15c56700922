package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/siherrmann/convograph/model"
	"github.com/spf13/cobra"
)

func newIngestCommand(opts *rootOptions) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Store conversations from a JSON file or stdin",
		Long: `Reads a JSON array of conversations (or a single conversation object) and stores
each of them with extracted topics and, if an embedder is loaded, an embedding.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var in io.Reader = cmd.InOrStdin()
			if file != "" && file != "-" {
				f, err := os.Open(file)
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}

			conversations, err := readConversations(in)
			if err != nil {
				return err
			}

			c, err := opts.openForCommand(cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			ids := make([]string, 0, len(conversations))
			for _, conversation := range conversations {
				err := c.IngestConversation(cmd.Context(), conversation)
				if err != nil {
					return fmt.Errorf("ingest %q: %w", conversation.Title, err)
				}
				ids = append(ids, conversation.ID.String())
			}

			return writeJSON(cmd.OutOrStdout(), map[string]interface{}{"ingested": ids})
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "-", "JSON file to read, - for stdin")

	return cmd
}

func newEmbedCommand(opts *rootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "embed",
		Short: "Compute embeddings for conversations stored without one",
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.noEmbedder {
				return fmt.Errorf("embed needs an embedding model, remove --no-embedder")
			}

			c, err := opts.openForCommand(cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			embedded, err := c.EmbedPending(cmd.Context(), limit)
			if err != nil {
				return err
			}

			return writeJSON(cmd.OutOrStdout(), map[string]int{"embedded": embedded})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 100, "maximum number of conversations to embed")

	return cmd
}

// readConversations accepts a JSON array or a single JSON object.
func readConversations(in io.Reader) ([]*model.Conversation, error) {
	data, err := io.ReadAll(in)
	if err != nil {
		return nil, err
	}

	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return nil, fmt.Errorf("no conversations in input")
	}

	if strings.HasPrefix(trimmed, "{") {
		conversation := &model.Conversation{}
		if err := json.Unmarshal([]byte(trimmed), conversation); err != nil {
			return nil, fmt.Errorf("decode conversation: %w", err)
		}
		return []*model.Conversation{conversation}, nil
	}

	var conversations []*model.Conversation
	if err := json.Unmarshal([]byte(trimmed), &conversations); err != nil {
		return nil, fmt.Errorf("decode conversations: %w", err)
	}
	if len(conversations) == 0 {
		return nil, fmt.Errorf("no conversations in input")
	}

	return conversations, nil
}
