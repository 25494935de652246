package completion

import (
	"context"
	"encoding/base64"

	"github.com/rentfleet/aigw/config"
	openai "github.com/sashabaranov/go-openai"
)

// OpenAI is a Client backed by the OpenAI chat completions API or any
// compatible server (cfg.Endpoint). Image attachments are sent as data URLs.
type OpenAI struct {
	client *openai.Client
	model  string
}

// NewOpenAI creates an OpenAI client for cfg.Model.
func NewOpenAI(cfg config.LLMConfig) *OpenAI {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.Endpoint != "" {
		clientCfg.BaseURL = cfg.Endpoint
	}
	return &OpenAI{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
	}
}

func (c *OpenAI) Complete(ctx context.Context, prompt string, attachments []Attachment) (string, error) {
	msg := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser}
	if len(attachments) == 0 {
		msg.Content = prompt
	} else {
		msg.MultiContent = multiContent(prompt, attachments)
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: []openai.ChatCompletionMessage{msg},
	})
	if err != nil {
		return "", unavailable(err)
	}

	if len(resp.Choices) == 0 {
		return "", rejected("no choices")
	}
	choice := resp.Choices[0]
	if choice.FinishReason == openai.FinishReasonContentFilter {
		return "", rejected("content filtered")
	}
	if choice.Message.Content == "" {
		return "", rejected("empty output")
	}
	return choice.Message.Content, nil
}

func multiContent(prompt string, attachments []Attachment) []openai.ChatMessagePart {
	parts := make([]openai.ChatMessagePart, 0, len(attachments)+1)
	parts = append(parts, openai.ChatMessagePart{
		Type: openai.ChatMessagePartTypeText,
		Text: prompt,
	})
	for _, a := range attachments {
		parts = append(parts, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{
				URL:    "data:" + a.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(a.Data),
				Detail: openai.ImageURLDetailAuto,
			},
		})
	}
	return parts
}
