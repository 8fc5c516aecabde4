package extraction

import (
	"context"

	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/gridline-ai/gridline-backend/internal/models"
)

// Service fronts the configured extractor with the redis result cache.
type Service struct {
	extractor Extractor
	cache     *resultCache
}

func (s *Service) Provider() string { return s.extractor.Provider() }
func (s *Service) Model() string    { return s.extractor.Model() }

// Extract returns the tables found in the file, serving identical uploads
// from cache. Cached artifacts are flagged so callers can surface it.
func (s *Service) Extract(ctx context.Context, file models.FileInput) ([]models.TableArtifact, error) {
	key := s.cache.key(file, s.extractor.Provider(), s.extractor.Model())

	if artifacts, ok := s.cache.get(ctx, key); ok {
		fiberlog.Debugf("extraction cache hit for %s", file.Name)
		for i := range artifacts {
			artifacts[i].Cached = true
		}
		return artifacts, nil
	}

	artifacts, err := s.extractor.ExtractTables(ctx, file)
	if err != nil {
		return nil, err
	}

	s.cache.set(ctx, key, artifacts)
	return artifacts, nil
}
