package extraction

import (
	"context"
	"fmt"
	"strings"

	"github.com/gridline-ai/gridline-backend/internal/models"
	"github.com/redis/go-redis/v9"
)

// Extractor turns a single uploaded document into tabular artifacts.
type Extractor interface {
	ExtractTables(ctx context.Context, file models.FileInput) ([]models.TableArtifact, error)
	Provider() string
	Model() string
}

// extractionPrompt is shared across providers. Each table comes back as a
// fenced csv block so parseTables can split them without provider-specific
// response handling.
const extractionPrompt = `Extract every table from the attached document.
Return each table as a separate fenced code block tagged csv, for example:

` + "```csv" + `
header_a,header_b
1,2
` + "```" + `

Preserve cell values exactly. Use the first row of each block for column
headers. If a page contains no tables, skip it. Do not add commentary
outside the fenced blocks.`

// New builds the configured provider client wrapped with the redis result
// cache. An unknown provider is a configuration error, not a fallback.
func New(cfg *models.ExtractionConfig, redisClient *redis.Client) (*Service, error) {
	var extractor Extractor

	switch cfg.Provider {
	case models.ProviderOpenAI:
		extractor = newOpenAIExtractor(cfg)
	case models.ProviderAnthropic:
		extractor = newAnthropicExtractor(cfg)
	case models.ProviderGemini:
		extractor = newGeminiExtractor(cfg)
	default:
		return nil, fmt.Errorf("unknown extraction provider: %s", cfg.Provider)
	}

	return &Service{
		extractor: extractor,
		cache:     newResultCache(redisClient, cfg.CacheTTL()),
	}, nil
}

// parseTables splits a model response into one artifact per fenced csv block.
func parseTables(response, provider, model string) []models.TableArtifact {
	var artifacts []models.TableArtifact

	remaining := response
	for {
		start := strings.Index(remaining, "```csv")
		if start == -1 {
			break
		}
		remaining = remaining[start+len("```csv"):]
		remaining = strings.TrimPrefix(remaining, "\n")

		end := strings.Index(remaining, "```")
		if end == -1 {
			break
		}

		csv := strings.TrimSpace(remaining[:end])
		remaining = remaining[end+len("```"):]

		if csv == "" {
			continue
		}
		artifacts = append(artifacts, models.TableArtifact{
			Name:     fmt.Sprintf("table_%d", len(artifacts)+1),
			CSV:      csv,
			Provider: provider,
			Model:    model,
		})
	}

	return artifacts
}
