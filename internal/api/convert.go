package api

import (
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"github.com/gridline-ai/gridline-backend/internal/models"
	"github.com/gridline-ai/gridline-backend/internal/services/auth"
	"github.com/gridline-ai/gridline-backend/internal/services/entitlements"
	"github.com/gridline-ai/gridline-backend/internal/services/extraction"
	"github.com/gridline-ai/gridline-backend/internal/services/ledger"
	"golang.org/x/sync/errgroup"
)

// maxConcurrentExtractions bounds parallel provider calls per request.
const maxConcurrentExtractions = 4

type ConvertHandler struct {
	extraction   *extraction.Service
	entitlements *entitlements.Service
}

func NewConvertHandler(extractionService *extraction.Service, entitlementsService *entitlements.Service) *ConvertHandler {
	return &ConvertHandler{
		extraction:   extractionService,
		entitlements: entitlementsService,
	}
}

// Convert runs the consumption path: quote the uploaded batch, reserve
// against the account's buckets, extract tables, then commit the debit as one
// conditional decrement. Extraction failures are never charged.
func (h *ConvertHandler) Convert(c *fiber.Ctx) error {
	authCtx := auth.GetAuthContext(c)
	userID, ok := authCtx.GetUserID()
	if !ok {
		return respondError(c, models.NewAuthenticationError("authentication required", nil))
	}
	account := authCtx.Account

	form, err := c.MultipartForm()
	if err != nil {
		return respondError(c, models.NewValidationError("expected multipart form upload", err))
	}
	fileHeaders := form.File["files"]
	if len(fileHeaders) == 0 {
		return respondError(c, models.NewValidationError("at least one file is required", nil))
	}

	policy := models.PolicyForTier(account.Tier)

	inputs := make([]models.FileInput, 0, len(fileHeaders))
	for _, header := range fileHeaders {
		if header.Size > policy.MaxFileBytes {
			return respondError(c, models.NewValidationError(
				fmt.Sprintf("%s exceeds the %d byte limit for the %s tier", header.Filename, policy.MaxFileBytes, account.Tier), nil))
		}

		input, err := readUpload(header)
		if err != nil {
			return respondError(c, err)
		}
		inputs = append(inputs, input)
	}

	descriptors := make([]models.FileDescriptor, len(inputs))
	for i, input := range inputs {
		descriptors[i] = input.FileDescriptor
	}

	required, err := ledger.Quote(account.Tier, descriptors)
	if err != nil {
		return respondError(c, err)
	}

	plan, err := ledger.Reserve(account.PlanCredits, account.RefillCredits, required)
	if err != nil {
		return respondError(c, err)
	}

	conversionID := uuid.NewString()
	fiberlog.Infof("[%s] converting %d files for %s (%d units)", conversionID, len(inputs), userID, required)

	artifactsByFile := make([][]models.TableArtifact, len(inputs))
	g, groupCtx := errgroup.WithContext(c.Context())
	g.SetLimit(maxConcurrentExtractions)
	for i, input := range inputs {
		g.Go(func() error {
			artifacts, err := h.extraction.Extract(groupCtx, input)
			if err != nil {
				return err
			}
			artifactsByFile[i] = artifacts
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		fiberlog.Errorf("[%s] extraction failed, no credits charged: %v", conversionID, err)
		return respondError(c, err)
	}

	if err := h.entitlements.CommitDebit(c.Context(), userID, plan); err != nil {
		return respondError(c, err)
	}

	updated, err := h.entitlements.Get(c.Context(), userID)
	if err != nil {
		// The debit committed; fall back to the pre-request snapshot rather
		// than failing the whole conversion.
		fiberlog.Warnf("[%s] balance refresh failed: %v", conversionID, err)
		updated = account
	}

	var artifacts []models.TableArtifact
	for _, fileArtifacts := range artifactsByFile {
		artifacts = append(artifacts, fileArtifacts...)
	}

	return c.JSON(models.ConversionResult{
		ConversionID:  conversionID,
		Artifacts:     artifacts,
		UnitsCharged:  plan.Units(),
		PlanDebit:     plan.PlanDebit,
		RefillDebit:   plan.RefillDebit,
		PlanCredits:   updated.PlanCredits,
		RefillCredits: updated.RefillCredits,
	})
}

func readUpload(header *multipart.FileHeader) (models.FileInput, error) {
	file, err := header.Open()
	if err != nil {
		return models.FileInput{}, models.NewValidationError("failed to open uploaded file", err)
	}
	defer func() {
		_ = file.Close()
	}()

	data, err := io.ReadAll(file)
	if err != nil {
		return models.FileInput{}, models.NewValidationError("failed to read uploaded file", err)
	}

	mimeType := detectMime(header)
	if mimeType == "" {
		return models.FileInput{}, models.NewValidationError(
			fmt.Sprintf("unsupported file type for %s", header.Filename), nil)
	}

	return models.FileInput{
		FileDescriptor: models.FileDescriptor{
			Name:     header.Filename,
			MimeType: mimeType,
			Size:     header.Size,
		},
		Data: data,
	}, nil
}

// detectMime trusts the upload's content type when present and falls back to
// the filename extension. Unknown types return empty.
func detectMime(header *multipart.FileHeader) string {
	contentType := header.Header.Get("Content-Type")
	if contentType != "" && contentType != "application/octet-stream" {
		if idx := strings.Index(contentType, ";"); idx != -1 {
			contentType = strings.TrimSpace(contentType[:idx])
		}
		return contentType
	}

	switch strings.ToLower(filepath.Ext(header.Filename)) {
	case ".pdf":
		return models.MimePDF
	case ".png":
		return models.MimePNG
	case ".jpg", ".jpeg":
		return models.MimeJPEG
	case ".webp":
		return models.MimeWebP
	case ".docx":
		return models.MimeDOCX
	case ".doc":
		return models.MimeDOC
	default:
		return ""
	}
}
