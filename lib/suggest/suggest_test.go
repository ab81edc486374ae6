package suggest

import (
	"context"
	"strings"
	"testing"

	"github.com/icco/animeportal/lib/apperr"
	"github.com/icco/animeportal/lib/config"
	"github.com/icco/animeportal/lib/testutil"
	"github.com/icco/animeportal/models"
	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCompleter struct {
	answer string
	err    error
	last   openai.ChatCompletionRequest
}

func (f *fakeCompleter) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.last = req
	if f.err != nil {
		return openai.ChatCompletionResponse{}, f.err
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: f.answer}}},
	}, nil
}

type staticGenres []models.Genre

func (g staticGenres) PublicGenres(context.Context) ([]models.Genre, error) {
	return g, nil
}

func (g staticGenres) MatchGenres(_ context.Context, candidates []string) ([]models.Genre, error) {
	var out []models.Genre
	for _, c := range candidates {
		for _, genre := range g {
			if strings.EqualFold(c, genre.Name) {
				out = append(out, genre)
			}
		}
	}
	return out, nil
}

var known = staticGenres{{ID: 1, Name: "Aksiyon"}, {ID: 2, Name: "Komedi"}, {ID: 3, Name: "Dram"}}

func TestValidateResponse(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr bool
	}{
		{name: "valid", data: `{"genres": ["Aksiyon", "Dram"]}`},
		{name: "empty list", data: `{"genres": []}`},
		{name: "missing genres", data: `{}`, wantErr: true},
		{name: "extra field", data: `{"genres": [], "why": "x"}`, wantErr: true},
		{name: "wrong item type", data: `{"genres": [1, 2]}`, wantErr: true},
		{name: "empty name", data: `{"genres": [""]}`, wantErr: true},
		{name: "not json", data: `Aksiyon, Dram`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateResponse([]byte(tt.data))
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSanitize(t *testing.T) {
	r := &Response{Genres: []string{" Aksiyon ", "aksiyon", "  ", "Dram"}}
	r.Sanitize()
	assert.Equal(t, []string{"Aksiyon", "Dram"}, r.Genres)
}

func TestGenresDisabledWithoutKey(t *testing.T) {
	s := New(config.OpenAIConfig{Model: "gpt-4o-mini"}, known, testutil.Logger())
	assert.False(t, s.Enabled())

	_, err := s.Genres(context.Background(), "Naruto", "ninja")
	assert.ErrorIs(t, err, apperr.ErrUnavailable)
}

func TestGenresMatchesKnownNames(t *testing.T) {
	fake := &fakeCompleter{answer: `{"genres": ["aksiyon", "Bilim Kurgu", "Komedi", "Aksiyon"]}`}
	s := New(config.OpenAIConfig{Model: "gpt-4o-mini"}, known, testutil.Logger()).WithClient(fake)

	got, err := s.Genres(context.Background(), "Naruto", "Genç bir ninjanın hikayesi")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Aksiyon", got[0].Name)
	assert.Equal(t, "Komedi", got[1].Name)

	assert.Equal(t, "gpt-4o-mini", fake.last.Model)
	require.Len(t, fake.last.Messages, 2)
	assert.Contains(t, fake.last.Messages[1].Content, "Aksiyon, Komedi, Dram")
}

func TestGenresRejectsBadAnswers(t *testing.T) {
	fake := &fakeCompleter{answer: "Aksiyon ve Dram"}
	s := New(config.OpenAIConfig{}, known, testutil.Logger()).WithClient(fake)

	_, err := s.Genres(context.Background(), "Naruto", "ninja")
	assert.ErrorIs(t, err, apperr.ErrUnavailable)

	fake.answer = ""
	fake.err = assert.AnError
	_, err = s.Genres(context.Background(), "Naruto", "ninja")
	assert.ErrorIs(t, err, apperr.ErrUnavailable)

	_, err = s.Genres(context.Background(), " ", "")
	assert.ErrorIs(t, err, apperr.ErrValidation)
}
