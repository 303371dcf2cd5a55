// Package analysis adapts AI providers to the two calls an aggregation run
// makes: summarize the board, then render a picture of its mood.
package analysis

import (
	"context"
	"fmt"

	"github.com/sujalbistaa/retroboard/internal/models"
)

// Analysis is what a Summarizer derives from a snapshot of the board.
type Analysis struct {
	Summary     string           `json:"summary"`
	ImagePrompt string           `json:"imagePrompt"`
	Sentiment   models.Sentiment `json:"sentiment"`
}

// Image is a rendered picture.
type Image struct {
	Data []byte
	MIME string
}

// Summarizer turns board items into a summary, sentiment and image prompt.
type Summarizer interface {
	Summarize(ctx context.Context, items []models.Item) (Analysis, error)
}

// ImageRenderer draws an image for a prompt. A nil Image with a nil error
// means no image, which is not a failure.
type ImageRenderer interface {
	RenderImage(ctx context.Context, prompt string) (*Image, error)
}

// Providers.
const (
	ProviderNone      = "none"
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

// Options selects and configures the providers.
type Options struct {
	Provider      string
	APIKey        string
	Model         string
	BaseURL       string
	ImageProvider string
	ImageAPIKey   string
	ImageModel    string
	Context       string
}

// NewSummarizer returns the summarizer for opts.Provider.
func NewSummarizer(opts Options) (Summarizer, error) {
	switch opts.Provider {
	case ProviderAnthropic:
		return NewAnthropic(opts.APIKey, opts.Model, opts.BaseURL, opts.Context), nil
	case ProviderOpenAI:
		return NewOpenAI(opts.APIKey, opts.Model, opts.BaseURL, opts.Context), nil
	case ProviderNone, "":
		return Tally{}, nil
	default:
		return nil, fmt.Errorf("unknown analysis provider %q", opts.Provider)
	}
}

// NewImageRenderer returns the renderer for opts.ImageProvider.
func NewImageRenderer(opts Options) (ImageRenderer, error) {
	switch opts.ImageProvider {
	case ProviderOpenAI:
		// base_url points at the summarizer; only reuse it when that is OpenAI too.
		baseURL := ""
		if opts.Provider == ProviderOpenAI {
			baseURL = opts.BaseURL
		}
		return NewOpenAIImages(opts.ImageAPIKey, opts.ImageModel, baseURL), nil
	case ProviderNone, "":
		return NoImage{}, nil
	default:
		return nil, fmt.Errorf("unknown image provider %q", opts.ImageProvider)
	}
}

// NoImage never renders anything.
type NoImage struct{}

func (NoImage) RenderImage(context.Context, string) (*Image, error) { return nil, nil }
