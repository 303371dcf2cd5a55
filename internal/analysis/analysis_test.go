package analysis

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sujalbistaa/retroboard/internal/models"
)

var boardItems = []models.Item{
	{ID: 1, Category: models.CategoryGood, Text: "Demo went smoothly", LikeCount: 3},
	{ID: 2, Category: models.CategoryImprove, Text: "Too many\nmeetings", LikeCount: 0},
	{ID: 3, Category: models.CategoryGood, Text: "Pairing helped"},
}

const analysisJSON = `{"summary":"Solid sprint","imagePrompt":" stick figures cheering ","sentiment":{"overall":"positive","positiveRatio":0.8,"keyEmotions":["pride","relief"]}}`

func TestBuildPrompt_GroupsByCategoryWithLikes(t *testing.T) {
	prompt := BuildPrompt(boardItems, "  Sprint 42 review ")

	assert.Contains(t, prompt, "Context about this retrospective: Sprint 42 review")
	assert.Contains(t, prompt, "**Went well (2 items):**\n- Demo went smoothly [3 likes]\n- Pairing helped\n")
	assert.Contains(t, prompt, "**To improve (1 items):**\n- Too many meetings\n")
	assert.Contains(t, prompt, "**Feedback (0 items):**\n- none\n")

	assert.Less(t, strings.Index(prompt, "Went well"), strings.Index(prompt, "To improve"))
}

func TestBuildPrompt_NoTopic(t *testing.T) {
	assert.NotContains(t, BuildPrompt(nil, ""), "Context about this retrospective")
}

func TestParseAnalysis(t *testing.T) {
	t.Run("plain json", func(t *testing.T) {
		a, err := ParseAnalysis(analysisJSON)
		require.NoError(t, err)
		assert.Equal(t, "Solid sprint", a.Summary)
		assert.Equal(t, "stick figures cheering", a.ImagePrompt)
		assert.Equal(t, models.SentimentPositive, a.Sentiment.Overall)
		assert.InDelta(t, 0.8, a.Sentiment.PositiveRatio, 1e-9)
		assert.Equal(t, []string{"pride", "relief"}, a.Sentiment.KeyEmotions)
	})

	t.Run("code fence and prose", func(t *testing.T) {
		a, err := ParseAnalysis("Here you go:\n```json\n" + analysisJSON + "\n```")
		require.NoError(t, err)
		assert.Equal(t, "Solid sprint", a.Summary)
	})

	t.Run("sentiment normalized", func(t *testing.T) {
		a, err := ParseAnalysis(`{"summary":"s","sentiment":{"overall":"ecstatic","positiveRatio":4}}`)
		require.NoError(t, err)
		assert.Equal(t, models.SentimentNeutral, a.Sentiment.Overall)
		assert.Equal(t, 1.0, a.Sentiment.PositiveRatio)
		assert.NotNil(t, a.Sentiment.KeyEmotions)
	})

	t.Run("no json", func(t *testing.T) {
		_, err := ParseAnalysis("sorry, I cannot help")
		assert.Error(t, err)
	})

	t.Run("empty summary", func(t *testing.T) {
		_, err := ParseAnalysis(`{"summary":"  "}`)
		assert.Error(t, err)
	})
}

func TestTruncate_KeepsRunesWhole(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abc...", truncate("abcdef", 3))

	// "é" is two bytes; cutting at 2 would split it.
	got := truncate("aébc", 2)
	assert.Equal(t, "a...", got)
	assert.True(t, utf8.ValidString(got))
}

func TestOpenAI_Summarize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-test", req.Model)
		require.Len(t, req.Messages, 1)
		assert.Contains(t, req.Messages[0].Content, "Demo went smoothly [3 likes]")

		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"content": analysisJSON}}},
		})
	}))
	defer srv.Close()

	a, err := NewOpenAI("sk-test", "gpt-test", srv.URL+"/", "").Summarize(context.Background(), boardItems)
	require.NoError(t, err)
	assert.Equal(t, "Solid sprint", a.Summary)
	assert.Equal(t, "stick figures cheering", a.ImagePrompt)
}

func TestOpenAI_SummarizeErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"error":{"message":"slow down"}}`)
	}))
	defer srv.Close()

	_, err := NewOpenAI("k", "", srv.URL, "").Summarize(context.Background(), boardItems)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "openai status 429")
}

func TestOpenAIImages_RenderImage(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n0000")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/images/generations", r.URL.Path)

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "draw the team", req["prompt"])
		assert.Equal(t, defaultOpenAIImageModel, req["model"])
		assert.NotContains(t, req, "response_format")

		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]string{{"b64_json": base64.StdEncoding.EncodeToString(png)}},
		})
	}))
	defer srv.Close()

	img, err := NewOpenAIImages("k", "", srv.URL).RenderImage(context.Background(), "draw the team")
	require.NoError(t, err)
	require.NotNil(t, img)
	assert.Equal(t, png, img.Data)
	assert.Equal(t, "image/png", img.MIME)
}

func TestOpenAIImages_EmptyPromptOrResult(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_, _ = io.WriteString(w, `{"data":[]}`)
	}))
	defer srv.Close()

	r := NewOpenAIImages("k", "dall-e-3", srv.URL)

	img, err := r.RenderImage(context.Background(), "  ")
	require.NoError(t, err)
	assert.Nil(t, img)
	assert.Zero(t, calls)

	img, err = r.RenderImage(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Nil(t, img)
	assert.Equal(t, 1, calls)
}

func TestAnthropic_Summarize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "sk-ant-test", r.Header.Get("X-Api-Key"))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":          "msg_01",
			"type":        "message",
			"role":        "assistant",
			"model":       "claude-test",
			"stop_reason": "end_turn",
			"content": []map[string]string{
				{"type": "text", "text": "```json\n" + analysisJSON + "\n```"},
			},
			"usage": map[string]int{"input_tokens": 10, "output_tokens": 20},
		})
	}))
	defer srv.Close()

	a, err := NewAnthropic("sk-ant-test", "claude-test", srv.URL+"/", "").Summarize(context.Background(), boardItems)
	require.NoError(t, err)
	assert.Equal(t, "Solid sprint", a.Summary)
	assert.Equal(t, models.SentimentPositive, a.Sentiment.Overall)
}

func TestAnthropic_SummarizeAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"type":"error","error":{"type":"api_error","message":"boom"}}`)
	}))
	defer srv.Close()

	_, err := NewAnthropic("k", "", srv.URL+"/", "").Summarize(context.Background(), boardItems)
	assert.Error(t, err)
}

func TestTally(t *testing.T) {
	a, err := Tally{}.Summarize(context.Background(), boardItems)
	require.NoError(t, err)

	// good weighs (1+3)+(1+0)=5, improve weighs 1.
	assert.InDelta(t, 5.0/6.0, a.Sentiment.PositiveRatio, 1e-9)
	assert.Equal(t, models.SentimentPositive, a.Sentiment.Overall)
	assert.Contains(t, a.Summary, "3 notes: 2 went well, 1 to improve, 0 feedback.")
	assert.Contains(t, a.Summary, "Most liked (3): Demo went smoothly")
	assert.Empty(t, a.ImagePrompt)
}

func TestTally_OnlyFeedbackIsNeutral(t *testing.T) {
	a, err := Tally{}.Summarize(context.Background(), []models.Item{{Category: models.CategoryFeedback, Text: "hi"}})
	require.NoError(t, err)
	assert.Equal(t, models.NeutralSentiment(), a.Sentiment)
}

func TestProviderSelection(t *testing.T) {
	s, err := NewSummarizer(Options{Provider: ProviderNone})
	require.NoError(t, err)
	assert.IsType(t, Tally{}, s)

	s, err = NewSummarizer(Options{Provider: ProviderAnthropic, APIKey: "k"})
	require.NoError(t, err)
	assert.IsType(t, &Anthropic{}, s)

	_, err = NewSummarizer(Options{Provider: "gemini"})
	assert.Error(t, err)

	r, err := NewImageRenderer(Options{Provider: ProviderAnthropic, BaseURL: "https://proxy", ImageProvider: ProviderOpenAI})
	require.NoError(t, err)
	require.IsType(t, &OpenAIImages{}, r)
	assert.Equal(t, defaultOpenAIBaseURL, r.(*OpenAIImages).baseURL)

	r, err = NewImageRenderer(Options{})
	require.NoError(t, err)
	img, err := r.RenderImage(context.Background(), "x")
	assert.NoError(t, err)
	assert.Nil(t, img)
}
