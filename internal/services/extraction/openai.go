package extraction

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"time"

	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/gridline-ai/gridline-backend/internal/models"
	"github.com/openai/openai-go/v2"
	openaiOption "github.com/openai/openai-go/v2/option"
)

type openAIExtractor struct {
	client openai.Client
	model  string
}

func newOpenAIExtractor(cfg *models.ExtractionConfig) *openAIExtractor {
	opts := []openaiOption.RequestOption{
		openaiOption.WithAPIKey(cfg.APIKey),
	}

	if cfg.BaseURL != "" {
		opts = append(opts, openaiOption.WithBaseURL(cfg.BaseURL))
	}

	if cfg.TimeoutMs > 0 {
		httpClient := &http.Client{
			Timeout: cfg.Timeout(),
		}
		opts = append(opts, openaiOption.WithHTTPClient(httpClient))
	}

	return &openAIExtractor{
		client: openai.NewClient(opts...),
		model:  cfg.Model,
	}
}

func (e *openAIExtractor) Provider() string { return "openai" }
func (e *openAIExtractor) Model() string    { return e.model }

func (e *openAIExtractor) ExtractTables(ctx context.Context, file models.FileInput) ([]models.TableArtifact, error) {
	dataURL := fmt.Sprintf("data:%s;base64,%s", file.MimeType, base64.StdEncoding.EncodeToString(file.Data))

	parts := []openai.ChatCompletionContentPartUnionParam{
		openai.TextContentPart(extractionPrompt),
	}
	if file.MimeType == models.MimePDF {
		parts = append(parts, openai.FileContentPart(openai.ChatCompletionContentPartFileFileParam{
			FileData: openai.String(dataURL),
			Filename: openai.String(file.Name),
		}))
	} else {
		parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
			URL: dataURL,
		}))
	}

	startTime := time.Now()
	completion, err := e.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(e.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(parts),
		},
	})
	duration := time.Since(startTime)

	if err != nil {
		fiberlog.Errorf("OpenAI extraction failed after %v for %s: %v", duration, file.Name, err)
		return nil, models.NewProviderError("openai", "extraction request failed", err)
	}
	if len(completion.Choices) == 0 {
		return nil, models.NewProviderError("openai", "extraction returned no choices", nil)
	}

	fiberlog.Debugf("OpenAI extraction for %s completed in %v", file.Name, duration)
	return parseTables(completion.Choices[0].Message.Content, e.Provider(), e.model), nil
}
