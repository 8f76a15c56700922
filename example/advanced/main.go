package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/siherrmann/convograph"
	"github.com/siherrmann/convograph/core/fusion"
	"github.com/siherrmann/convograph/helper"
	"github.com/siherrmann/convograph/model"
)

type sample struct {
	title    string
	question string
	content  string
	age      time.Duration
}

var samples = []sample{
	{
		title:    "Setting up pgvector",
		question: "How do I install pgvector and create an embedding column?",
		content:  "Run CREATE EXTENSION vector, then add a column of type vector(384) and an hnsw index with vector_cosine_ops.",
		age:      72 * time.Hour,
	},
	{
		title:    "Tuning the pgvector index",
		question: "Building on the pgvector setup, how do I tune the hnsw index for recall?",
		content:  "Increase ef_search per session. m and ef_construction trade build time for graph quality.",
		age:      24 * time.Hour,
	},
	{
		title:    "Why is my pgvector query slow",
		question: "My pgvector similarity query ignores the hnsw index, why?",
		content:  "Order by the distance operator directly and keep the limit small so the planner picks the index.",
		age:      2 * time.Hour,
	},
}

func main() {
	// Start a test PostgreSQL container
	teardown, dbPort, err := helper.MustStartPostgresContainer()
	if err != nil {
		log.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	defer teardown(context.Background())

	// Create database configuration
	dbConfig := &helper.DatabaseConfiguration{
		Host:     "localhost",
		Port:     dbPort,
		Database: "database",
		Username: "user",
		Password: "password",
		Schema:   "public",
		SSLMode:  "disable",
	}

	options, err := convograph.DefaultOptions()
	if err != nil {
		log.Fatalf("Failed to load options: %v", err)
	}
	// Looser than the default so the small sample set produces edges.
	options.Build.MinSimilarity = 0.5
	options.Fusion.LexicalWeight = 0.3
	options.Fusion.VectorWeight = 0.7

	c, err := convograph.NewConvographWithOptions(dbConfig, 384, options)
	if err != nil {
		log.Fatalf("Failed to create convograph: %v", err)
	}
	defer c.Close()

	if err := c.UseDefaultPipeline(); err != nil {
		log.Fatalf("Failed to set up pipeline: %v", err)
	}

	ctx := context.Background()
	project := "search-service"

	fmt.Println("=== Ingesting Conversations ===")
	conversations := make([]*model.Conversation, 0, len(samples))
	for _, s := range samples {
		question := s.question
		conversation := &model.Conversation{
			Platform:        "claude",
			Project:         &project,
			Title:           s.title,
			PrimaryUserText: &question,
			Content:         s.content,
			StartedAt:       time.Now().Add(-s.age),
		}
		if err := c.IngestConversation(ctx, conversation); err != nil {
			log.Fatalf("Failed to ingest %q: %v", s.title, err)
		}
		conversations = append(conversations, conversation)
		fmt.Printf("'%s' (ID: %s) topics %v\n", conversation.Title, conversation.ID, conversation.Topics)
	}

	queryText := "pgvector hnsw index"

	for i, mode := range []string{fusion.StrategyLexical, fusion.StrategyVector, fusion.StrategyHybrid} {
		fmt.Printf("\n=== %d. %s search ===\n", i+1, mode)
		response, err := c.SearchWithMode(ctx, mode, queryText, model.Filters{}, 3)
		if err != nil {
			log.Fatalf("%s search failed: %v", mode, err)
		}
		for _, result := range response.Results {
			fmt.Printf("%s  %.4f  ranks %v\n", result.RecordID, result.FusedScore, result.Ranks)
		}
	}

	fmt.Println("\n=== 4. Building Relationships ===")
	summary, err := c.BatchBuild(ctx, 0, 0)
	if err != nil {
		log.Fatalf("Batch build failed: %v", err)
	}
	fmt.Printf("Success %d, failed %d, skipped %d, edges %d\n", summary.Success, summary.Failed, summary.Skipped, summary.EdgesCreated)

	fmt.Println("\n=== 5. Related Conversations ===")
	latest := conversations[len(conversations)-1]
	related, err := c.Related(ctx, latest.ID, nil, false)
	if err != nil {
		log.Fatalf("Related failed: %v", err)
	}
	for _, r := range related {
		fmt.Printf("%s via %s\n", r.Summary.ID, r.Via.RelationshipType)
	}

	fmt.Println("\n=== 6. Two Hop Traversal ===")
	reached, err := c.BFSTraversal(ctx, latest.ID, 2, []model.RelationshipType{model.RelationshipBuildsOn, model.RelationshipRelated}, true)
	if err != nil {
		log.Fatalf("Traversal failed: %v", err)
	}
	for _, r := range reached {
		fmt.Printf("distance %d: %s\n", r.Distance, r.Summary.ID)
	}

	fmt.Println("\n=== 7. Changing Index Type ===")
	fmt.Println("Switching to IVFFlat index...")
	err = c.ChangeIndexType(ctx, "ivfflat", map[string]interface{}{
		"lists": 10,
	})
	if err != nil {
		log.Printf("Warning: Index change failed (this is okay for small datasets): %v", err)
	} else {
		fmt.Println("Successfully switched to IVFFlat index")
	}

	fmt.Println("\nAdvanced example completed successfully!")
}
