package pipeline

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/knights-analytics/hugot"
	"github.com/knights-analytics/hugot/pipelines"
	"github.com/siherrmann/convograph/helper"
)

const DefaultMaxTopics = 5

var stopwords = map[string]struct{}{}

func init() {
	for _, w := range strings.Fields(`
		a about above after again against all also am an and any are as at be because been before being
		below between both but by can could did do does doing down during each few for from further get
		got had has have having he her here hers him his how i if in into is it its itself just let like
		me more most my no nor not now of off on once only or other our ours out over own please same
		she should so some such than that the their theirs them then there these they this those through
		to too under until up use using very want was we were what when where which while who whom why
		will with would you your yours yourself thanks thank hi hello okay ok yes need make way one two
		something anything thing things get getting trying try tried know think see still even much many
		new work works working`) {
		stopwords[w] = struct{}{}
	}
}

// DefaultTopicExtractor extracts up to DefaultMaxTopics keyword topics.
func DefaultTopicExtractor() TopicFunc {
	return KeywordTopicExtractor(DefaultMaxTopics)
}

// KeywordTopicExtractor returns the maxTopics most frequent non stopword terms
// of a text. Ties keep the order of first occurrence.
func KeywordTopicExtractor(maxTopics int) TopicFunc {
	if maxTopics <= 0 {
		maxTopics = DefaultMaxTopics
	}

	return func(text string) ([]string, error) {
		type term struct {
			word  string
			count int
			first int
		}

		terms := map[string]*term{}
		for i, word := range tokenize(text) {
			if _, ok := stopwords[word]; ok || len(word) < 3 || isNumber(word) {
				continue
			}
			if t, ok := terms[word]; ok {
				t.count++
				continue
			}
			terms[word] = &term{word: word, count: 1, first: i}
		}

		ranked := make([]*term, 0, len(terms))
		for _, t := range terms {
			ranked = append(ranked, t)
		}
		sort.Slice(ranked, func(i, j int) bool {
			if ranked[i].count != ranked[j].count {
				return ranked[i].count > ranked[j].count
			}
			return ranked[i].first < ranked[j].first
		})

		topics := make([]string, 0, maxTopics)
		for _, t := range ranked {
			if len(topics) == maxTopics {
				break
			}
			topics = append(topics, t.word)
		}
		return topics, nil
	}
}

// EntityTopicExtractor uses a NER model to find named entities (products,
// organizations, technologies) and fills up the remaining slots with keyword topics.
func EntityTopicExtractor(maxTopics int) (TopicFunc, error) {
	if maxTopics <= 0 {
		maxTopics = DefaultMaxTopics
	}

	modelPath, err := helper.PrepareModel("KnightsAnalytics/distilbert-NER", "model.onnx")
	if err != nil {
		return nil, err
	}

	session, err := hugot.NewGoSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create hugot session: %w", err)
	}

	config := hugot.TokenClassificationConfig{
		ModelPath: modelPath,
		Name:      "topic-ner",
		Options: []hugot.TokenClassificationOption{
			pipelines.WithSimpleAggregation(),
			pipelines.WithIgnoreLabels([]string{"O"}),
		},
	}
	nerPipeline, err := hugot.NewPipeline(session, config)
	if err != nil {
		if destroyErr := session.Destroy(); destroyErr != nil {
			return nil, fmt.Errorf("failed to create NER pipeline: %w (cleanup error: %v)", err, destroyErr)
		}
		return nil, fmt.Errorf("failed to create NER pipeline: %w", err)
	}

	keywords := KeywordTopicExtractor(maxTopics)
	var mu sync.Mutex

	return func(text string) ([]string, error) {
		if strings.TrimSpace(text) == "" {
			return []string{}, nil
		}

		mu.Lock()
		result, err := nerPipeline.RunPipeline([]string{text})
		mu.Unlock()
		if err != nil {
			return nil, fmt.Errorf("failed to run NER: %w", err)
		}

		var entities []string
		if len(result.Entities) > 0 {
			for _, entity := range result.Entities[0] {
				entities = append(entities, strings.ToLower(strings.TrimSpace(entity.Word)))
			}
		}

		fallback, err := keywords(text)
		if err != nil {
			return nil, err
		}

		return MergeTopics(maxTopics, entities, fallback), nil
	}, nil
}

// MergeTopics concatenates topic lists without duplicates, up to maxTopics.
func MergeTopics(maxTopics int, lists ...[]string) []string {
	seen := map[string]struct{}{}
	merged := []string{}
	for _, list := range lists {
		for _, topic := range list {
			topic = strings.ToLower(strings.TrimSpace(topic))
			if topic == "" || strings.HasPrefix(topic, "##") {
				continue
			}
			if _, ok := seen[topic]; ok {
				continue
			}
			if len(merged) == maxTopics {
				return merged
			}
			seen[topic] = struct{}{}
			merged = append(merged, topic)
		}
	}
	return merged
}

// tokenize splits lower cased text into words. Dots, dashes, plus and hash
// signs inside a word are kept so "node.js" and "c++" survive.
func tokenize(text string) []string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '.' && r != '-' && r != '+' && r != '#' && r != '_'
	})
	tokens := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.Trim(w, ".-_")
		if w != "" {
			tokens = append(tokens, w)
		}
	}
	return tokens
}

func isNumber(word string) bool {
	for _, r := range word {
		if !unicode.IsDigit(r) && r != '.' {
			return false
		}
	}
	return true
}
