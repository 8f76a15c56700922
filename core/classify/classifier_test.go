package classify

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/siherrmann/convograph/model"
	"github.com/stretchr/testify/assert"
)

func summary(project string, text string, topics ...string) *model.ConversationSummary {
	s := &model.ConversationSummary{
		ID:        uuid.New(),
		StartedAt: time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC),
		Topics:    topics,
	}
	if project != "" {
		s.Project = &project
	}
	if text != "" {
		s.PrimaryUserText = &text
	}
	return s
}

func TestClassifyRulePriority(t *testing.T) {
	t.Run("Near duplicate wins over same project", func(t *testing.T) {
		a := summary("convograph", "How do I configure the MCP server?")
		b := summary("convograph", "How do I configure the MCP server?")

		assert.Equal(t, model.RelationshipNearDuplicate, Classify(a, b, 0.97), "Expected near_duplicate for similarity 0.97")
	})

	t.Run("Threshold is exclusive", func(t *testing.T) {
		a := summary("", "a")
		b := summary("", "b")

		assert.Equal(t, model.RelationshipReferences, Classify(a, b, 0.95), "Expected 0.95 to not be near_duplicate")
		assert.Equal(t, model.RelationshipRelated, Classify(a, b, 0.85), "Expected 0.85 to not be references")
	})

	t.Run("Same project wins over references", func(t *testing.T) {
		a := summary("convograph", "add fusion")
		b := summary("convograph", "add classifier")

		assert.Equal(t, model.RelationshipBuildsOn, Classify(a, b, 0.9), "Expected builds_on for same project")
	})

	t.Run("Empty project names do not count as same project", func(t *testing.T) {
		empty := ""
		a := &model.ConversationSummary{Project: &empty}
		b := &model.ConversationSummary{Project: &empty}

		assert.Equal(t, model.RelationshipRelated, Classify(a, b, 0.5), "Expected related for empty projects")
	})

	t.Run("Same problem needs keywords on both sides and shared topic", func(t *testing.T) {
		a := summary("web", "I get an ERROR when connecting to postgres", "postgres", "docker")
		b := summary("api", "Please help me fix the connection pool", "Postgres")

		assert.Equal(t, model.RelationshipSolvesSameProblem, Classify(a, b, 0.82), "Expected solves_same_problem")
	})

	t.Run("Same problem without shared topic falls through", func(t *testing.T) {
		a := summary("web", "I get an error when connecting", "postgres")
		b := summary("api", "Please help me fix this", "redis")

		assert.Equal(t, model.RelationshipRelated, Classify(a, b, 0.82), "Expected related without topic overlap")
	})

	t.Run("Same problem with keyword on one side only falls through", func(t *testing.T) {
		a := summary("web", "the build is broken", "go")
		b := summary("api", "write a haiku about go", "go")

		assert.Equal(t, model.RelationshipReferences, Classify(a, b, 0.9), "Expected references when only one side has a problem keyword")
	})

	t.Run("Contradiction in both directions", func(t *testing.T) {
		affirmative := summary("a", "You should use pgvector for this")
		negated := summary("b", "pgvector is deprecated in our stack")

		assert.Equal(t, model.RelationshipContradicts, Classify(affirmative, negated, 0.83), "Expected contradicts affirmative to negated")
		assert.Equal(t, model.RelationshipContradicts, Classify(negated, affirmative, 0.83), "Expected contradicts negated to affirmative")
	})

	t.Run("Negated phrase does not count as affirmative", func(t *testing.T) {
		a := summary("a", "this library is not recommended")
		b := summary("b", "this library is incompatible with go 1.24")

		assert.Equal(t, model.RelationshipRelated, Classify(a, b, 0.81), "Expected related when both sides are negated")
	})

	t.Run("Contradiction wins over references", func(t *testing.T) {
		a := summary("a", "Recommended: keep the default k")
		b := summary("b", "Changing k is not recommended either")

		assert.Equal(t, model.RelationshipContradicts, Classify(a, b, 0.9), "Expected contradicts before references")
	})

	t.Run("Problem rule wins over contradiction", func(t *testing.T) {
		a := summary("a", "this doesn't work with docker", "docker")
		b := summary("b", "docker works with the fix from yesterday", "docker")

		assert.Equal(t, model.RelationshipSolvesSameProblem, Classify(a, b, 0.9), "Expected solves_same_problem before contradicts")
	})

	t.Run("Typographic apostrophe is normalized", func(t *testing.T) {
		a := summary("a", "It doesn’t work on arm64")
		b := summary("b", "it works with arm64 since 1.2")

		assert.Equal(t, model.RelationshipContradicts, Classify(a, b, 0.5), "Expected contradicts with typographic apostrophe")
	})
}

func TestClassifyFallback(t *testing.T) {
	t.Run("Default fallback is related", func(t *testing.T) {
		a := summary("alpha", "Write a limerick about cats", "poetry")
		b := summary("beta", "Summarize this paper", "research")

		assert.Equal(t, model.RelationshipRelated, Classify(a, b, 0.5), "Expected related fallback")
	})

	t.Run("Nil summaries never fail", func(t *testing.T) {
		assert.Equal(t, model.RelationshipRelated, Classify(nil, nil, 0.5), "Expected related for nil summaries")
		assert.Equal(t, model.RelationshipNearDuplicate, Classify(nil, nil, 0.99), "Expected similarity rules to still apply")
		assert.Equal(t, model.RelationshipReferences, Classify(nil, summary("p", "error"), 0.9), "Expected references for sparse input")
	})

	t.Run("Missing primary text falls through", func(t *testing.T) {
		a := summary("a", "", "postgres")
		b := summary("b", "error with postgres", "postgres")

		assert.Equal(t, model.RelationshipRelated, Classify(a, b, 0.6), "Expected related when one text is missing")
	})

	t.Run("Classification is deterministic", func(t *testing.T) {
		a := summary("a", "help, the error persists", "go")
		b := summary("b", "how to fix this bug", "go")

		first := Classify(a, b, 0.8)
		for i := 0; i < 50; i++ {
			assert.Equal(t, first, Classify(a, b, 0.8), "Expected same classification on repeated calls")
		}
	})
}

func TestClassifyWith(t *testing.T) {
	t.Run("Custom rule table", func(t *testing.T) {
		rules := []Rule{{
			Type: model.RelationshipReferences,
			Match: func(_, _ *model.ConversationSummary, similarity float64) bool {
				return similarity > 0.5
			},
		}}

		assert.Equal(t, model.RelationshipReferences, ClassifyWith(rules, nil, nil, 0.6), "Expected custom rule to match")
		assert.Equal(t, model.RelationshipRelated, ClassifyWith(rules, nil, nil, 0.4), "Expected fallback")
		assert.Equal(t, model.RelationshipRelated, ClassifyWith(nil, nil, nil, 0.99), "Expected fallback with empty table")
	})
}
