// Package mcp exposes convograph as Model Context Protocol tools:
// hybrid search, relationship building, pair classification and
// related-conversation lookup.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/siherrmann/convograph/core/fusion"
	"github.com/siherrmann/convograph/core/graph"
	"github.com/siherrmann/convograph/model"
)

const (
	defaultLimit = 10
	maxLimit     = 50
)

// Service is the part of convograph the tools call.
type Service interface {
	SearchWithMode(ctx context.Context, mode string, query string, filters model.Filters, limit int) (*model.SearchResponse, error)
	Conversation(ctx context.Context, id uuid.UUID) (*model.Conversation, error)
	BuildRelationships(ctx context.Context, conversationID uuid.UUID, minSimilarity float64, maxNeighbors int) ([]*model.RelationshipEdge, error)
	Classify(ctx context.Context, sourceID uuid.UUID, targetID uuid.UUID) (model.RelationshipType, float64, error)
	Related(ctx context.Context, conversationID uuid.UUID, relationshipTypes []model.RelationshipType, outgoingOnly bool) ([]*graph.TraversalResult, error)
}

// ServerConfig holds configuration for the MCP server.
type ServerConfig struct {
	Service Service
	Version string // version string for MCP server info
}

// SearchResult is one hit of convograph_search.
type SearchResult struct {
	ID                  uuid.UUID      `json:"id"`
	Title               string         `json:"title,omitempty"`
	Platform            string         `json:"platform,omitempty"`
	Project             *string        `json:"project,omitempty"`
	StartedAt           *time.Time     `json:"started_at,omitempty"`
	Score               float64        `json:"score"`
	ContributingSources []model.Source `json:"contributing_sources"`
}

// SearchOutput is the payload of convograph_search.
type SearchOutput struct {
	Results []SearchResult          `json:"results"`
	Partial bool                    `json:"partial"`
	Omitted map[model.Source]string `json:"omitted,omitempty"`
}

// RelatedResult is one neighbor of convograph_related.
type RelatedResult struct {
	ID               uuid.UUID              `json:"id"`
	RelationshipType model.RelationshipType `json:"relationship_type"`
	SimilarityScore  float64                `json:"similarity_score"`
	Direction        string                 `json:"direction"`
	StartedAt        time.Time              `json:"started_at"`
	Topics           []string               `json:"topics,omitempty"`
}

// NewServer creates a configured MCP server with all convograph tools.
func NewServer(cfg ServerConfig) *server.MCPServer {
	ver := cfg.Version
	if ver == "" {
		ver = "dev"
	}

	s := server.NewMCPServer(
		"convograph",
		ver,
		server.WithToolCapabilities(false),
	)

	registerSearchTool(s, cfg.Service)
	registerRelateTool(s, cfg.Service)
	registerClassifyTool(s, cfg.Service)
	registerRelatedTool(s, cfg.Service)

	return s
}

// ServeStdio serves the tools over stdin/stdout until the client disconnects.
func ServeStdio(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

func registerSearchTool(s *server.MCPServer, service Service) {
	tool := mcp.NewTool("convograph_search",
		mcp.WithDescription("Search past AI conversations with keyword, semantic, or hybrid search. Hybrid fuses both rankings with reciprocal rank fusion and reports when one source was unavailable."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Search query string"),
		),
		mcp.WithString("mode",
			mcp.Description("Search mode: lexical, vector, or hybrid (default: hybrid)"),
			mcp.Enum(fusion.StrategyLexical, fusion.StrategyVector, fusion.StrategyHybrid),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of results (default: 10, max: 50)"),
		),
		mcp.WithString("project",
			mcp.Description("Only conversations of this project. Empty = all projects."),
		),
		mcp.WithString("platform",
			mcp.Description("Only conversations from this platform (e.g. claude, chatgpt, gemini)."),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcp.NewToolResultError("query is required"), nil
		}

		limit := defaultLimit
		if limitVal, err := req.RequireFloat("limit"); err == nil && limitVal > 0 {
			limit = min(int(limitVal), maxLimit)
		}

		filters := model.Filters{
			Project:  req.GetString("project", ""),
			Platform: req.GetString("platform", ""),
		}

		response, err := service.SearchWithMode(ctx, req.GetString("mode", fusion.StrategyHybrid), query, filters, limit)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("search error: %v", err)), nil
		}

		output := SearchOutput{
			Results: make([]SearchResult, 0, len(response.Results)),
			Partial: response.Partial,
			Omitted: response.Omitted,
		}
		for _, result := range response.Results {
			item := SearchResult{
				ID:                  result.RecordID,
				Score:               result.FusedScore,
				ContributingSources: result.ContributingSources,
			}
			// A conversation deleted since the search is still listed by id.
			if conversation, err := service.Conversation(ctx, result.RecordID); err == nil {
				item.Title = conversation.Title
				item.Platform = conversation.Platform
				item.Project = conversation.Project
				item.StartedAt = &conversation.StartedAt
			}
			output.Results = append(output.Results, item)
		}

		return jsonResult(output)
	})
}

func registerRelateTool(s *server.MCPServer, service Service) {
	tool := mcp.NewTool("convograph_relate",
		mcp.WithDescription("Build or refresh the relationship edges of one conversation from its nearest neighbors."),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithString("conversation_id",
			mcp.Required(),
			mcp.Description("ID of the conversation"),
		),
		mcp.WithNumber("min_similarity",
			mcp.Description("Minimum cosine similarity of neighbors (default: 0.8)"),
		),
		mcp.WithNumber("max_neighbors",
			mcp.Description("Maximum number of neighbors (default: 20)"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, errResult := requireUUID(req, "conversation_id")
		if errResult != nil {
			return errResult, nil
		}

		edges, err := service.BuildRelationships(ctx, id, req.GetFloat("min_similarity", 0), int(req.GetFloat("max_neighbors", 0)))
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("relate error: %v", err)), nil
		}

		return jsonResult(map[string]interface{}{
			"conversation_id": id,
			"edges":           edges,
		})
	})
}

func registerClassifyTool(s *server.MCPServer, service Service) {
	tool := mcp.NewTool("convograph_classify",
		mcp.WithDescription("Classify how one conversation relates to another: near_duplicate, builds_on, solves_same_problem, contradicts, references or related."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("source_id",
			mcp.Required(),
			mcp.Description("ID of the first conversation"),
		),
		mcp.WithString("target_id",
			mcp.Required(),
			mcp.Description("ID of the second conversation"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sourceID, errResult := requireUUID(req, "source_id")
		if errResult != nil {
			return errResult, nil
		}
		targetID, errResult := requireUUID(req, "target_id")
		if errResult != nil {
			return errResult, nil
		}

		relationshipType, similarity, err := service.Classify(ctx, sourceID, targetID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("classify error: %v", err)), nil
		}

		return jsonResult(map[string]interface{}{
			"source_id":         sourceID,
			"target_id":         targetID,
			"relationship_type": relationshipType,
			"similarity":        similarity,
		})
	})
}

func registerRelatedTool(s *server.MCPServer, service Service) {
	tool := mcp.NewTool("convograph_related",
		mcp.WithDescription("List conversations connected to a conversation by stored relationship edges."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("conversation_id",
			mcp.Required(),
			mcp.Description("ID of the conversation"),
		),
		mcp.WithString("types",
			mcp.Description("Comma separated relationship types to follow. Empty = all types."),
		),
		mcp.WithBoolean("outgoing_only",
			mcp.Description("Only follow edges starting at the conversation (default: false)"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, errResult := requireUUID(req, "conversation_id")
		if errResult != nil {
			return errResult, nil
		}

		var relationshipTypes []model.RelationshipType
		for _, name := range strings.Split(req.GetString("types", ""), ",") {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			relationshipType, err := model.ParseRelationshipType(name)
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("invalid type: %v", err)), nil
			}
			relationshipTypes = append(relationshipTypes, relationshipType)
		}

		results, err := service.Related(ctx, id, relationshipTypes, req.GetBool("outgoing_only", false))
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("related error: %v", err)), nil
		}

		output := make([]RelatedResult, 0, len(results))
		for _, result := range results {
			direction := "outgoing"
			if result.Via.TargetID == id {
				direction = "incoming"
			}
			output = append(output, RelatedResult{
				ID:               result.Summary.ID,
				RelationshipType: result.Via.RelationshipType,
				SimilarityScore:  result.Via.SimilarityScore,
				Direction:        direction,
				StartedAt:        result.Summary.StartedAt,
				Topics:           result.Summary.Topics,
			})
		}

		return jsonResult(output)
	})
}

func requireUUID(req mcp.CallToolRequest, key string) (uuid.UUID, *mcp.CallToolResult) {
	raw, err := req.RequireString(key)
	if err != nil {
		return uuid.Nil, mcp.NewToolResultError(fmt.Sprintf("%s is required", key))
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, mcp.NewToolResultError(fmt.Sprintf("invalid %s: %v", key, err))
	}
	return id, nil
}

func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
