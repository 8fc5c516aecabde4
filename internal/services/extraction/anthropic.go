package extraction

import (
	"context"
	"encoding/base64"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/gridline-ai/gridline-backend/internal/models"
)

type anthropicExtractor struct {
	client anthropic.Client
	model  string
}

func newAnthropicExtractor(cfg *models.ExtractionConfig) *anthropicExtractor {
	clientOpts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
	}

	if cfg.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(cfg.BaseURL))
	}

	if cfg.TimeoutMs > 0 {
		clientOpts = append(clientOpts, option.WithRequestTimeout(cfg.Timeout()))
	}

	return &anthropicExtractor{
		client: anthropic.NewClient(clientOpts...),
		model:  cfg.Model,
	}
}

func (e *anthropicExtractor) Provider() string { return "anthropic" }
func (e *anthropicExtractor) Model() string    { return e.model }

func (e *anthropicExtractor) ExtractTables(ctx context.Context, file models.FileInput) ([]models.TableArtifact, error) {
	encoded := base64.StdEncoding.EncodeToString(file.Data)

	var attachment anthropic.ContentBlockParamUnion
	if file.MimeType == models.MimePDF {
		attachment = anthropic.NewDocumentBlock(anthropic.Base64PDFSourceParam{
			Data: encoded,
		})
	} else {
		attachment = anthropic.NewImageBlockBase64(file.MimeType, encoded)
	}

	startTime := time.Now()
	message, err := e.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(e.model),
		MaxTokens: 8192,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(
				attachment,
				anthropic.NewTextBlock(extractionPrompt),
			),
		},
	})
	duration := time.Since(startTime)

	if err != nil {
		fiberlog.Errorf("Anthropic extraction failed after %v for %s: %v", duration, file.Name, err)
		return nil, models.NewProviderError("anthropic", "extraction request failed", err)
	}

	var text strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	fiberlog.Debugf("Anthropic extraction for %s completed in %v", file.Name, duration)
	return parseTables(text.String(), e.Provider(), e.model), nil
}
