package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/arjun/forestwatch/internal/llm"
	"github.com/arjun/forestwatch/pkg/models"
)

// Classification is the category/sentiment decision for one article. Summary
// is empty when the keyword path produced the result.
type Classification struct {
	Category  string `json:"category"`
	Sentiment string `json:"sentiment"`
	Summary   string `json:"summary"`
}

// Classifier decides category and sentiment for a news item.
type Classifier interface {
	Classify(ctx context.Context, title, description string) Classification
}

// Rule is one keyword rule. Rules are evaluated in order and the first whose
// keywords match wins, so the order of Rules is part of the contract.
type Rule struct {
	Keywords  []string
	Category  string
	Sentiment func(text string) string
}

func fixed(sentiment string) func(string) string {
	return func(string) string { return sentiment }
}

// Rules is the ordered fallback rule chain. Wildlife sentiment flips to
// negative when the text also mentions poaching or killing.
var Rules = []Rule{
	{
		Keywords:  []string{"deforest", "felling", "illegal logging"},
		Category:  models.CategoryDeforestation,
		Sentiment: fixed(models.SentimentNegative),
	},
	{
		Keywords:  []string{"fire", "blaze", "wildfire"},
		Category:  models.CategoryFire,
		Sentiment: fixed(models.SentimentNegative),
	},
	{
		Keywords: []string{"wildlife", "tiger", "elephant", "poach"},
		Category: models.CategoryWildlife,
		Sentiment: func(text string) string {
			if strings.Contains(text, "poach") || strings.Contains(text, "kill") {
				return models.SentimentNegative
			}
			return models.SentimentNeutral
		},
	},
	{
		Keywords:  []string{"policy", "government", "ministry", "act", "law"},
		Category:  models.CategoryPolicy,
		Sentiment: fixed(models.SentimentNeutral),
	},
	{
		Keywords:  []string{"plant", "green", "conserv", "restore"},
		Category:  models.CategoryConservation,
		Sentiment: fixed(models.SentimentPositive),
	},
}

// KeywordClassifier applies Rules to the lowercased title+description. It is
// deterministic and never fails.
type KeywordClassifier struct{}

func (KeywordClassifier) Classify(_ context.Context, title, description string) Classification {
	text := strings.ToLower(title + " " + description)
	for _, rule := range Rules {
		if containsAny(text, rule.Keywords) {
			return Classification{Category: rule.Category, Sentiment: rule.Sentiment(text)}
		}
	}
	return Classification{Category: models.CategoryConservation, Sentiment: models.SentimentNeutral}
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

const systemPrompt = `Categorize this forest/environment news article. Return JSON: {"category":"deforestation|fire|conservation|wildlife|policy","sentiment":"positive|negative|neutral","summary":"one line summary"}`

// AIClassifier asks a chat model for the classification and falls back to the
// embedded keyword classifier whenever the call or its output is unusable.
// Classification failures never surface to the caller.
type AIClassifier struct {
	client   *llm.Client
	fallback KeywordClassifier
	logger   *slog.Logger
}

func NewAIClassifier(client *llm.Client, logger *slog.Logger) *AIClassifier {
	return &AIClassifier{client: client, logger: logger}
}

func (c *AIClassifier) Classify(ctx context.Context, title, description string) Classification {
	result, err := c.classifyAI(ctx, title, description)
	if err != nil {
		c.logger.Warn("ai classification failed, using keyword fallback", "error", err)
		return c.fallback.Classify(ctx, title, description)
	}
	return result
}

func (c *AIClassifier) classifyAI(ctx context.Context, title, description string) (Classification, error) {
	content, err := c.client.Chat(ctx, []llm.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: fmt.Sprintf("Title: %s\nDescription: %s", title, description)},
	}, llm.Options{MaxTokens: 100, Temperature: 0.1})
	if err != nil {
		return Classification{}, err
	}

	var parsed Classification
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return Classification{}, fmt.Errorf("parse classification: %w", err)
	}
	if !validCategory(parsed.Category) || !validSentiment(parsed.Sentiment) {
		return Classification{}, fmt.Errorf("classification outside contract: category=%q sentiment=%q", parsed.Category, parsed.Sentiment)
	}
	return parsed, nil
}

func validCategory(c string) bool {
	switch c {
	case models.CategoryDeforestation, models.CategoryFire, models.CategoryWildlife,
		models.CategoryPolicy, models.CategoryConservation:
		return true
	}
	return false
}

func validSentiment(s string) bool {
	switch s {
	case models.SentimentPositive, models.SentimentNegative, models.SentimentNeutral:
		return true
	}
	return false
}

// New selects the AI classifier when a credential is configured and the pure
// keyword classifier otherwise.
func New(client *llm.Client, logger *slog.Logger) Classifier {
	if client.Configured() {
		return NewAIClassifier(client, logger)
	}
	return KeywordClassifier{}
}
