package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	_ "embed"

	"go.uber.org/zap"

	"github.com/spigell/lead-scorer/internal/ai"
	"github.com/spigell/lead-scorer/internal/leads"
	"github.com/spigell/lead-scorer/internal/logger"
	"github.com/spigell/lead-scorer/internal/utils"
)

const (
	providerName        = "gemini"
	systemInstruction   = "You are an expert B2B lead qualification assistant."
	defaultMaxLogLength = 200
)

//go:embed prompt.md
var promptTemplate string

var (
	intentWord       = regexp.MustCompile(`(?i)\b(high|medium|low)\b`)
	reasoningPrefix  = regexp.MustCompile(`(?i)^(reasoning|reason|explanation|because)\s*[:\-]?\s*`)
	trailingIntentKW = regexp.MustCompile(`(?i)(buying\s+)?intent\s*[:\-=]?\s*$`)
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, system, message string) (string, error)
	Model() string
}

// Classifier asks Gemini for the buying intent of a lead.
type Classifier struct {
	generator contentGenerator
	logger    *zap.Logger
	maxLogLen int
}

// NewClassifier builds a classifier over generator.
func NewClassifier(generator contentGenerator, maxLogLength int, log *zap.Logger) *Classifier {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}

	return &Classifier{
		generator: generator,
		logger:    logger.WithCommonFields(log, providerName, generator.Model()),
		maxLogLen: maxLogLength,
	}
}

// Classify implements ai.Classifier.
func (c *Classifier) Classify(ctx context.Context, lead leads.Lead, offer leads.Offer) (*ai.Classification, error) {
	prompt, err := buildPrompt(lead, offer)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("gemini generate content request",
		zap.String("lead", lead.Label()),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, c.maxLogLen)),
	)

	raw, err := c.generator.GenerateContent(ctx, systemInstruction, prompt)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("gemini generate content response",
		zap.String("lead", lead.Label()),
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, c.maxLogLen)),
	)

	cls, err := parseResponse(raw)
	if err != nil {
		return nil, err
	}
	cls.Raw = raw

	return cls, nil
}

func buildPrompt(lead leads.Lead, offer leads.Offer) (string, error) {
	offerJSON, err := json.MarshalIndent(offer, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal offer payload: %w", err)
	}

	leadJSON, err := json.MarshalIndent(lead, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal lead payload: %w", err)
	}

	template := promptTemplate
	if strings.TrimSpace(template) == "" {
		template = "Offer:\n{{OFFER_JSON}}\n\nLead:\n{{LEAD_JSON}}\n\nJSON Response:"
	}

	prompt := strings.ReplaceAll(template, "{{OFFER_JSON}}", string(offerJSON))
	prompt = strings.ReplaceAll(prompt, "{{LEAD_JSON}}", string(leadJSON))
	return prompt, nil
}

// parseResponse accepts the JSON shape requested by the prompt and falls back
// to scanning free text for the first intent word.
func parseResponse(raw string) (*ai.Classification, error) {
	cleaned := extractJSON(raw)
	if cleaned == "" {
		return nil, fmt.Errorf("%w: empty response", ai.ErrUnparsable)
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(cleaned), &data); err == nil {
		intentValue := firstString(data, "intent", "label", "buying_intent")
		reasoning := firstString(data, "reasoning", "reason", "explanation")

		if intent, err := leads.ParseIntent(intentValue); err == nil {
			return &ai.Classification{Intent: intent, Reasoning: reasoning}, nil
		}
		if intent, _, ok := scanIntent(intentValue); ok {
			return &ai.Classification{Intent: intent, Reasoning: reasoning}, nil
		}
		return nil, fmt.Errorf("%w: intent %q", ai.ErrUnparsable, intentValue)
	}

	intent, reasoning, ok := scanIntent(cleaned)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ai.ErrUnparsable, utils.TruncateForLog(cleaned, defaultMaxLogLength))
	}
	return &ai.Classification{Intent: intent, Reasoning: reasoning}, nil
}

// scanIntent finds the earliest intent word in text. The text following it
// (or preceding it, when nothing follows) becomes the reasoning.
func scanIntent(text string) (leads.Intent, string, bool) {
	loc := intentWord.FindStringSubmatchIndex(text)
	if loc == nil {
		return "", "", false
	}

	intent, err := leads.ParseIntent(text[loc[2]:loc[3]])
	if err != nil {
		return "", "", false
	}

	reasoning := cleanReasoning(text[loc[1]:])
	if reasoning == "" {
		before := strings.TrimSpace(text[:loc[0]])
		before = trailingIntentKW.ReplaceAllString(before, "")
		reasoning = cleanReasoning(before)
	}

	return intent, reasoning, true
}

func cleanReasoning(s string) string {
	s = strings.TrimLeft(s, " \t\r\n.,;:-–—*\"'")
	s = reasoningPrefix.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}

func firstString(data map[string]any, keys ...string) string {
	for _, key := range keys {
		for k, v := range data {
			if !strings.EqualFold(k, key) {
				continue
			}
			if s := coerceString(v); s != "" {
				return s
			}
		}
	}
	return ""
}

func coerceString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case fmt.Stringer:
		return strings.TrimSpace(val.String())
	case nil:
		return ""
	default:
		bytes, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(bytes)
	}
}
