package main

import (
	"encoding/json"
	"io"
	"log/slog"

	"github.com/siherrmann/convograph"
	"github.com/siherrmann/convograph/core/pipeline"
	"github.com/siherrmann/convograph/helper"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	debug        bool
	embeddingDim int
	noEmbedder   bool
	modelName    string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "convograph",
		Short: "Hybrid search and relationship graph over AI conversations",
		Long: `convograph stores conversations from AI platforms in Postgres, searches them
with fused keyword and semantic ranking and links related conversations.

Database settings are read from DB_HOST, DB_PORT, DB_DATABASE, DB_USERNAME,
DB_PASSWORD, DB_SCHEMA and DB_SSLMODE (a .env file is loaded if present).`,
		SilenceUsage: true,
	}

	root.PersistentFlags().BoolVar(&opts.debug, "debug", false, "enable debug logging")
	root.PersistentFlags().IntVar(&opts.embeddingDim, "embedding-dim", pipeline.DefaultEmbeddingDimension, "dimension of the conversation embeddings")
	root.PersistentFlags().BoolVar(&opts.noEmbedder, "no-embedder", false, "do not load an embedding model (vector search is omitted)")
	root.PersistentFlags().StringVar(&opts.modelName, "model", pipeline.DefaultEmbeddingModel, "sentence transformer model from the hugging face hub")

	root.AddCommand(
		newIngestCommand(opts),
		newEmbedCommand(opts),
		newSearchCommand(opts),
		newRelateCommand(opts),
		newBatchCommand(opts),
		newClassifyCommand(opts),
		newRelatedCommand(opts),
		newStatsCommand(opts),
		newIndexCommand(opts),
		newMCPCommand(opts),
	)

	return root
}

// open connects to the database and loads the embedder unless disabled.
// Logs go to stderr so stdout stays machine readable.
func (o *rootOptions) open(logOut io.Writer) (*convograph.Convograph, error) {
	dbConfig, err := helper.NewDatabaseConfiguration()
	if err != nil {
		return nil, err
	}

	options, err := convograph.DefaultOptions()
	if err != nil {
		return nil, err
	}
	options.Logger = o.newLogger(logOut)

	c, err := convograph.NewConvographWithOptions(dbConfig, o.embeddingDim, options)
	if err != nil {
		return nil, err
	}

	if o.noEmbedder {
		return c, nil
	}

	embedder, err := pipeline.ModelEmbedder(o.modelName, "onnx/model.onnx")
	if err != nil {
		_ = c.Close()
		return nil, helper.NewError("load embedder", err)
	}
	c.SetEmbedder(embedder)

	return c, nil
}

func (o *rootOptions) newLogger(out io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if o.debug {
		level = slog.LevelDebug
	}
	return helper.NewLogger(out, level)
}

func (o *rootOptions) logger(cmd *cobra.Command) *slog.Logger {
	return o.newLogger(cmd.ErrOrStderr())
}

func (o *rootOptions) openForCommand(cmd *cobra.Command) (*convograph.Convograph, error) {
	return o.open(cmd.ErrOrStderr())
}

func writeJSON(w io.Writer, v interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
