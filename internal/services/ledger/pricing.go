package ledger

import (
	"strings"

	"github.com/gridline-ai/gridline-backend/internal/models"
)

const (
	imageCost   int64 = 1
	wordDocCost int64 = 3
	// pdfBytesPerUnit prices PDFs with an unknown page count.
	pdfBytesPerUnit int64 = 10 << 20
)

// QuoteFile returns the credit cost of converting a single file for the given
// tier. Deterministic and side-effect free: images cost one unit, word
// processor documents three, PDFs one unit per tier-specific page block
// (falling back to byte size when the page count is unknown).
func QuoteFile(tier models.Tier, file models.FileDescriptor) (int64, error) {
	if file.Size <= 0 {
		return 0, models.NewValidationError("file is empty", nil)
	}

	policy := models.PolicyForTier(tier)
	if file.Size > policy.MaxFileBytes {
		return 0, models.NewValidationError("file exceeds the size limit for your tier", nil)
	}

	switch normalizeMime(file.MimeType) {
	case models.MimePNG, models.MimeJPEG, models.MimeWebP:
		return imageCost, nil
	case models.MimeDOCX, models.MimeDOC:
		return wordDocCost, nil
	case models.MimePDF:
		if file.Pages > 0 {
			return ceilDiv(int64(file.Pages), int64(policy.PDFPagesPerUnit)), nil
		}
		return ceilDiv(file.Size, pdfBytesPerUnit), nil
	default:
		return 0, models.NewValidationError("unsupported file type: "+file.MimeType, nil)
	}
}

// Quote sums the cost of a batch, enforcing the tier's per-batch file limit.
func Quote(tier models.Tier, files []models.FileDescriptor) (int64, error) {
	if len(files) == 0 {
		return 0, models.NewValidationError("no files provided", nil)
	}

	policy := models.PolicyForTier(tier)
	if len(files) > policy.MaxFilesPerBatch {
		return 0, models.NewValidationError("too many files for your tier", nil)
	}

	var total int64
	for _, f := range files {
		cost, err := QuoteFile(tier, f)
		if err != nil {
			return 0, err
		}
		total += cost
	}
	return total, nil
}

func normalizeMime(mime string) string {
	mime = strings.ToLower(strings.TrimSpace(mime))
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	if mime == "image/jpg" {
		return models.MimeJPEG
	}
	return mime
}

func ceilDiv(n, d int64) int64 {
	if d <= 0 {
		return n
	}
	return (n + d - 1) / d
}
