package extraction

import (
	"context"
	"fmt"
	"sync"
	"time"

	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/gridline-ai/gridline-backend/internal/models"
	"google.golang.org/genai"
)

type geminiExtractor struct {
	cfg *models.ExtractionConfig

	mu     sync.Mutex
	client *genai.Client
}

// newGeminiExtractor defers client construction to first use because
// genai.NewClient needs a context.
func newGeminiExtractor(cfg *models.ExtractionConfig) *geminiExtractor {
	return &geminiExtractor{cfg: cfg}
}

func (e *geminiExtractor) Provider() string { return "gemini" }
func (e *geminiExtractor) Model() string    { return e.cfg.Model }

func (e *geminiExtractor) getClient(ctx context.Context) (*genai.Client, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.client != nil {
		return e.client, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  e.cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	e.client = client
	return client, nil
}

func (e *geminiExtractor) ExtractTables(ctx context.Context, file models.FileInput) ([]models.TableArtifact, error) {
	client, err := e.getClient(ctx)
	if err != nil {
		return nil, models.NewProviderError("gemini", "client initialization failed", err)
	}

	if e.cfg.TimeoutMs > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Timeout())
		defer cancel()
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(file.Data, file.MimeType),
			genai.NewPartFromText(extractionPrompt),
		}, genai.RoleUser),
	}

	startTime := time.Now()
	resp, err := client.Models.GenerateContent(ctx, e.cfg.Model, contents, nil)
	duration := time.Since(startTime)

	if err != nil {
		fiberlog.Errorf("Gemini extraction failed after %v for %s: %v", duration, file.Name, err)
		return nil, models.NewProviderError("gemini", "extraction request failed", err)
	}

	fiberlog.Debugf("Gemini extraction for %s completed in %v", file.Name, duration)
	return parseTables(resp.Text(), e.Provider(), e.cfg.Model), nil
}
