package completion

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/rentfleet/aigw/config"
	"google.golang.org/api/option"
)

var safetyThresholds = map[string]genai.HarmBlockThreshold{
	"none":             genai.HarmBlockNone,
	"only_high":        genai.HarmBlockOnlyHigh,
	"medium_and_above": genai.HarmBlockMediumAndAbove,
	"low_and_above":    genai.HarmBlockLowAndAbove,
}

var harmCategories = []genai.HarmCategory{
	genai.HarmCategoryHarassment,
	genai.HarmCategoryHateSpeech,
	genai.HarmCategorySexuallyExplicit,
	genai.HarmCategoryDangerousContent,
}

// Gemini is a Client backed by the Google Gemini API. It supports image
// attachments.
type Gemini struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

// NewGemini creates a Gemini client for cfg.Model.
func NewGemini(ctx context.Context, cfg config.LLMConfig) (*Gemini, error) {
	opts := []option.ClientOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}

	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	model := client.GenerativeModel(cfg.Model)
	model.SafetySettings = safetySettings(cfg.SafetyThreshold)

	return &Gemini{client: client, model: model}, nil
}

// safetySettings applies threshold to every harm category. An empty or
// unknown threshold leaves the provider defaults in place.
func safetySettings(threshold string) []*genai.SafetySetting {
	t, ok := safetyThresholds[threshold]
	if !ok {
		return nil
	}
	settings := make([]*genai.SafetySetting, 0, len(harmCategories))
	for _, category := range harmCategories {
		settings = append(settings, &genai.SafetySetting{Category: category, Threshold: t})
	}
	return settings
}

// Complete sends the prompt text followed by the attachments as inline blobs.
func (g *Gemini) Complete(ctx context.Context, prompt string, attachments []Attachment) (string, error) {
	parts := make([]genai.Part, 0, len(attachments)+1)
	parts = append(parts, genai.Text(prompt))
	for _, a := range attachments {
		parts = append(parts, genai.Blob{MIMEType: a.MIMEType, Data: a.Data})
	}

	resp, err := g.model.GenerateContent(ctx, parts...)
	if err != nil {
		return "", generateError(err)
	}
	return candidateText(resp)
}

// generateError classifies a GenerateContent failure. Safety blocks of the
// prompt or the candidate are refusals; anything else means the backend
// could not serve the call.
func generateError(err error) error {
	var blocked *genai.BlockedError
	if errors.As(err, &blocked) {
		return rejected(blocked.Error())
	}
	return unavailable(err)
}

// candidateText concatenates the text parts of the first candidate.
func candidateText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", rejected("no candidates")
	}

	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonSafety {
		return "", rejected("candidate blocked for safety")
	}

	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	if sb.Len() == 0 {
		return "", rejected(fmt.Sprintf("empty output (finish reason %v)", candidate.FinishReason))
	}
	return sb.String(), nil
}

// Close releases the underlying connection.
func (g *Gemini) Close() error {
	return g.client.Close()
}
