package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/siherrmann/convograph"
	"github.com/siherrmann/convograph/helper"
	"github.com/siherrmann/convograph/model"
)

func main() {
	// Start a test PostgreSQL container
	teardown, dbPort, err := helper.MustStartPostgresContainer()
	if err != nil {
		log.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	defer teardown(context.Background())

	// Create database configuration using the container port
	dbConfig := &helper.DatabaseConfiguration{
		Host:     "localhost",
		Port:     dbPort,
		Database: "database",
		Username: "user",
		Password: "password",
		Schema:   "public",
		SSLMode:  "disable",
	}

	c, err := convograph.NewConvograph(dbConfig, 384)
	if err != nil {
		log.Fatalf("Failed to create convograph: %v", err)
	}
	defer c.Close()

	// Set up the default pipeline (keyword topics + embeddings)
	if err := c.UseDefaultPipeline(); err != nil {
		log.Fatalf("Failed to set up pipeline: %v", err)
	}

	ctx := context.Background()
	project := "search-service"
	question := "How do I tune the HNSW index in pgvector for better recall?"

	conversation := &model.Conversation{
		Platform:        "claude",
		Project:         &project,
		Title:           "Tuning pgvector HNSW",
		PrimaryUserText: &question,
		Content: `Raise ef_search at query time for better recall, at the cost of latency.
When building the index, m and ef_construction control graph density.
For a few million rows m = 16 and ef_construction = 64 are reasonable defaults.`,
		StartedAt: time.Now().Add(-time.Hour),
	}

	fmt.Println("Ingesting conversation...")
	if err := c.IngestConversation(ctx, conversation); err != nil {
		log.Fatalf("Failed to ingest conversation: %v", err)
	}
	fmt.Printf("Conversation inserted with ID: %s\n", conversation.ID)
	fmt.Printf("Topics: %v\n", conversation.Topics)

	queryText := "pgvector recall"
	fmt.Printf("\nQuerying: %s\n", queryText)

	response, err := c.Search(ctx, queryText, model.Filters{Project: project}, 5)
	if err != nil {
		log.Fatalf("Failed to search: %v", err)
	}

	fmt.Printf("\nFound %d results:\n", len(response.Results))
	for i, result := range response.Results {
		fmt.Printf("\n--- Result %d ---\n", i+1)
		fmt.Printf("Conversation: %s\n", result.RecordID)
		fmt.Printf("Fused score: %.4f\n", result.FusedScore)
		fmt.Printf("Sources: %v\n", result.ContributingSources)
		fmt.Printf("Ranks: %v\n", result.Ranks)
	}
	if response.Partial {
		fmt.Printf("Omitted sources: %v\n", response.Omitted)
	}

	fmt.Println("\nBasic example completed successfully!")
}
