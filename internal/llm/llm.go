// Package llm generates lesson content directly from an OpenAI-compatible endpoint.
// It produces the same shape as the platform's /api/v1/ai/generate endpoint.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/pavelanni/galaxy-admin/internal/llm/prompts"
	"github.com/pavelanni/galaxy-admin/internal/model"
)

// Client wraps an OpenAI-compatible API client.
type Client struct {
	api          *openai.Client
	model        string
	numQuestions int
	numOptions   int
}

// New creates a new LLM client that asks for numQuestions questions per lesson.
func New(baseURL, apiKey, modelName string, numQuestions int) (*Client, error) {
	if err := prompts.Load(prompts.FS()); err != nil {
		return nil, fmt.Errorf("load prompts: %w", err)
	}
	if numQuestions <= 0 {
		numQuestions = 5
	}
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &Client{
		api:          openai.NewClientWithConfig(config),
		model:        modelName,
		numQuestions: numQuestions,
		numOptions:   3,
	}, nil
}

// Ping checks that the endpoint is reachable by listing its models.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.api.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

// GenerateLessonContent asks the model for a lesson on req.Topic for req.AgeGroup.
func (c *Client) GenerateLessonContent(ctx context.Context, req model.GenerateRequest) (*model.GeneratedLesson, error) {
	systemPrompt, err := prompts.BuildLessonPrompt(prompts.LessonData{
		Topic:        req.Topic,
		AgeGroup:     req.AgeGroup,
		NumQuestions: c.numQuestions,
		NumOptions:   c.numOptions,
	})
	if err != nil {
		return nil, fmt.Errorf("build prompt: %w", err)
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: "Write the lesson now."},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.7,
	})
	if err != nil {
		return nil, fmt.Errorf("LLM API call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("LLM returned no choices")
	}

	raw := resp.Choices[0].Message.Content
	slog.Debug("LLM response", "raw", raw)

	lesson, err := parseLesson(raw)
	if err != nil {
		return nil, err
	}
	return lesson, nil
}

// parseLesson decodes a generated lesson, tolerating a surrounding markdown code fence.
func parseLesson(raw string) (*model.GeneratedLesson, error) {
	body := strings.TrimSpace(raw)
	if strings.HasPrefix(body, "```") {
		body = strings.TrimPrefix(body, "```json")
		body = strings.TrimPrefix(body, "```")
		body = strings.TrimSuffix(body, "```")
		body = strings.TrimSpace(body)
	}

	var lesson model.GeneratedLesson
	if err := json.Unmarshal([]byte(body), &lesson); err != nil {
		return nil, fmt.Errorf("parse LLM response: %w (raw: %s)", err, raw)
	}
	if len(lesson.Questions) == 0 {
		return nil, fmt.Errorf("LLM response has no questions (raw: %s)", raw)
	}
	for i := range lesson.Questions {
		q := &lesson.Questions[i]
		q.Text = strings.TrimSpace(q.Text)
		q.CorrectAnswer = strings.TrimSpace(q.CorrectAnswer)
		for j := range q.Options {
			q.Options[j] = strings.TrimSpace(q.Options[j])
		}
	}
	return &lesson, nil
}
