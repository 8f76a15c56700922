// Package classify labels how two conversations relate.
//
// Classification is an ordered rule table: the first rule that matches
// decides the type. Rules never fail; missing text or topics only make
// the text based rules not match.
package classify

import (
	"strings"

	"github.com/siherrmann/convograph/model"
)

const (
	NearDuplicateThreshold = 0.95
	ReferencesThreshold    = 0.85
)

// ProblemKeywords mark a conversation as being about a problem.
var ProblemKeywords = []string{
	"error",
	"issue",
	"problem",
	"bug",
	"failed",
	"broken",
	"not working",
	"doesn't work",
	"help",
	"fix",
	"solve",
}

// AffirmativePatterns recommend something.
var AffirmativePatterns = []string{
	"should use",
	"recommended",
	"works with",
}

// NegatedPatterns advise against something.
var NegatedPatterns = []string{
	"should not use",
	"not recommended",
	"deprecated",
	"doesn't work",
	"incompatible",
}

// MatchFunc reports whether a rule applies to a pair.
type MatchFunc func(source, target *model.ConversationSummary, similarity float64) bool

// Rule assigns Type when Match applies.
type Rule struct {
	Type  model.RelationshipType
	Match MatchFunc
}

// Rules is the decision order. The first matching rule wins.
var Rules = []Rule{
	{Type: model.RelationshipNearDuplicate, Match: isNearDuplicate},
	{Type: model.RelationshipBuildsOn, Match: isSameProject},
	{Type: model.RelationshipSolvesSameProblem, Match: isSameProblem},
	{Type: model.RelationshipContradicts, Match: isContradiction},
	{Type: model.RelationshipReferences, Match: isReference},
}

// Classify returns the relationship type of source to target.
// It is pure and safe for concurrent use.
func Classify(source, target *model.ConversationSummary, similarity float64) model.RelationshipType {
	return ClassifyWith(Rules, source, target, similarity)
}

// ClassifyWith evaluates rules in order and falls back to related.
func ClassifyWith(rules []Rule, source, target *model.ConversationSummary, similarity float64) model.RelationshipType {
	for _, rule := range rules {
		if rule.Match(source, target, similarity) {
			return rule.Type
		}
	}
	return model.RelationshipRelated
}

func isNearDuplicate(_, _ *model.ConversationSummary, similarity float64) bool {
	return similarity > NearDuplicateThreshold
}

func isReference(_, _ *model.ConversationSummary, similarity float64) bool {
	return similarity > ReferencesThreshold
}

func isSameProject(source, target *model.ConversationSummary, _ float64) bool {
	if source == nil || target == nil || source.Project == nil || target.Project == nil {
		return false
	}
	return *source.Project != "" && *source.Project == *target.Project
}

func isSameProblem(source, target *model.ConversationSummary, _ float64) bool {
	sourceText, ok := primaryText(source)
	if !ok {
		return false
	}
	targetText, ok := primaryText(target)
	if !ok {
		return false
	}
	return containsAny(sourceText, ProblemKeywords) &&
		containsAny(targetText, ProblemKeywords) &&
		topicsIntersect(source.Topics, target.Topics)
}

func isContradiction(source, target *model.ConversationSummary, _ float64) bool {
	sourceText, ok := primaryText(source)
	if !ok {
		return false
	}
	targetText, ok := primaryText(target)
	if !ok {
		return false
	}
	return (isAffirmative(sourceText) && isNegated(targetText)) ||
		(isNegated(sourceText) && isAffirmative(targetText))
}

// isAffirmative ignores affirmative phrases that are part of a negated
// phrase, "not recommended" does not recommend.
func isAffirmative(text string) bool {
	for _, negated := range NegatedPatterns {
		text = strings.ReplaceAll(text, negated, " ")
	}
	return containsAny(text, AffirmativePatterns)
}

func isNegated(text string) bool {
	return containsAny(text, NegatedPatterns)
}

// primaryText returns the lower cased primary user text.
func primaryText(summary *model.ConversationSummary) (string, bool) {
	if summary == nil || summary.PrimaryUserText == nil {
		return "", false
	}
	text := strings.TrimSpace(*summary.PrimaryUserText)
	if text == "" {
		return "", false
	}
	return normalizeApostrophes(strings.ToLower(text)), true
}

// normalizeApostrophes maps typographic apostrophes so "doesn’t work" matches.
func normalizeApostrophes(text string) string {
	return strings.NewReplacer("’", "'", "‘", "'").Replace(text)
}

func containsAny(text string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}

func topicsIntersect(a, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	seen := make(map[string]struct{}, len(a))
	for _, topic := range a {
		topic = strings.ToLower(strings.TrimSpace(topic))
		if topic != "" {
			seen[topic] = struct{}{}
		}
	}
	for _, topic := range b {
		if _, ok := seen[strings.ToLower(strings.TrimSpace(topic))]; ok {
			return true
		}
	}
	return false
}
