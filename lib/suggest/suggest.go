// Package suggest asks a chat model which of the catalog's genres fit an
// anime description.
package suggest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/icco/animeportal/lib/apperr"
	"github.com/icco/animeportal/lib/config"
	"github.com/icco/animeportal/models"
	openai "github.com/sashabaranov/go-openai"
)

// Completer is the part of the OpenAI client used here.
type Completer interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// GenreMatcher maps free-form names onto stored, public genres.
type GenreMatcher interface {
	PublicGenres(ctx context.Context) ([]models.Genre, error)
	MatchGenres(ctx context.Context, candidates []string) ([]models.Genre, error)
}

type Suggester struct {
	client Completer
	model  string
	genres GenreMatcher
	logger *slog.Logger
}

// New returns a Suggester. Without an API key it is disabled and every call
// reports Unavailable.
func New(cfg config.OpenAIConfig, genres GenreMatcher, logger *slog.Logger) *Suggester {
	s := &Suggester{model: cfg.Model, genres: genres, logger: logger}
	if cfg.APIKey != "" {
		s.client = openai.NewClient(cfg.APIKey)
	}
	return s
}

// WithClient swaps the model client.
func (s *Suggester) WithClient(c Completer) *Suggester {
	s.client = c
	return s
}

func (s *Suggester) Enabled() bool {
	return s.client != nil
}

// Genres returns the existing genres the model picks for the anime.
func (s *Suggester) Genres(ctx context.Context, name, description string) ([]models.Genre, error) {
	if !s.Enabled() {
		return nil, apperr.Unavailable("genre suggestions are not configured")
	}
	name = strings.TrimSpace(name)
	description = strings.TrimSpace(description)
	if name == "" && description == "" {
		return nil, apperr.Validation("name or description is required")
	}

	known, err := s.genres.PublicGenres(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(known))
	for _, g := range known {
		names = append(names, g.Name)
	}

	s.logger.DebugContext(ctx, "Requesting genre suggestions", slog.String("anime", name), slog.Int("known_genres", len(names)))

	req := openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleSystem,
				Content: "You are an anime librarian. Pick the genres that fit the anime from the allowed list only. " +
					`Answer with a JSON object of the form {"genres": ["..."]} and nothing else.`,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: fmt.Sprintf("Allowed genres: %s\n\nTitle: %s\n\nDescription:\n%s", strings.Join(names, ", "), name, description),
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	}

	resp, err := s.client.CreateChatCompletion(ctx, req)
	if err != nil {
		s.logger.ErrorContext(ctx, "Genre suggestion request failed", slog.Any("error", err))
		return nil, apperr.Unavailable("genre suggestion service failed").WithCause(err)
	}
	if len(resp.Choices) == 0 {
		return nil, apperr.Unavailable("genre suggestion service returned no answer")
	}

	parsed, err := ParseResponse([]byte(resp.Choices[0].Message.Content))
	if err != nil {
		s.logger.WarnContext(ctx, "Rejected genre suggestion answer", slog.Any("error", err))
		return nil, apperr.Unavailable("genre suggestion service returned an invalid answer").WithCause(err)
	}
	parsed.Sanitize()

	return s.genres.MatchGenres(ctx, parsed.Genres)
}
