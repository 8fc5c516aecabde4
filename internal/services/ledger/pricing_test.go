package ledger

import (
	"testing"

	"github.com/gridline-ai/gridline-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuoteFile(t *testing.T) {
	tests := []struct {
		name string
		tier models.Tier
		file models.FileDescriptor
		want int64
	}{
		{
			name: "png costs one unit",
			tier: models.TierFree,
			file: models.FileDescriptor{Name: "scan.png", MimeType: "image/png", Size: 120_000},
			want: 1,
		},
		{
			name: "jpg alias normalizes",
			tier: models.TierPro,
			file: models.FileDescriptor{Name: "photo.jpg", MimeType: "image/jpg", Size: 500_000},
			want: 1,
		},
		{
			name: "docx costs three units",
			tier: models.TierStarter,
			file: models.FileDescriptor{Name: "report.docx", MimeType: models.MimeDOCX, Size: 80_000},
			want: 3,
		},
		{
			name: "small pdf within page block costs one unit",
			tier: models.TierFree,
			file: models.FileDescriptor{Name: "invoice.pdf", MimeType: models.MimePDF, Size: 300_000, Pages: 4},
			want: 1,
		},
		{
			name: "paged pdf scales with tier page block",
			tier: models.TierFree, // 5 pages per unit
			file: models.FileDescriptor{Name: "ledger.pdf", MimeType: models.MimePDF, Size: 2_000_000, Pages: 12},
			want: 3,
		},
		{
			name: "same pdf is cheaper on pro",
			tier: models.TierPro, // 15 pages per unit
			file: models.FileDescriptor{Name: "ledger.pdf", MimeType: models.MimePDF, Size: 2_000_000, Pages: 12},
			want: 1,
		},
		{
			name: "pdf without page count falls back to size",
			tier: models.TierBusiness,
			file: models.FileDescriptor{Name: "scan.pdf", MimeType: models.MimePDF, Size: 25 << 20},
			want: 3,
		},
		{
			name: "mime parameters are stripped",
			tier: models.TierFree,
			file: models.FileDescriptor{Name: "s.png", MimeType: "image/png; charset=binary", Size: 1000},
			want: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := QuoteFile(tt.tier, tt.file)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestQuoteFileRejectsUnsupportedType(t *testing.T) {
	_, err := QuoteFile(models.TierFree, models.FileDescriptor{
		Name: "a.zip", MimeType: "application/zip", Size: 1000,
	})
	require.Error(t, err)
}

func TestQuoteFileRejectsOversizedFile(t *testing.T) {
	_, err := QuoteFile(models.TierFree, models.FileDescriptor{
		Name: "huge.pdf", MimeType: models.MimePDF, Size: 21 << 20, Pages: 2,
	})
	require.Error(t, err)
}

func TestQuoteBatch(t *testing.T) {
	files := []models.FileDescriptor{
		{Name: "a.png", MimeType: models.MimePNG, Size: 1000},
		{Name: "b.docx", MimeType: models.MimeDOCX, Size: 1000},
	}

	total, err := Quote(models.TierStarter, files)
	require.NoError(t, err)
	assert.Equal(t, int64(4), total)
}

func TestQuoteBatchEnforcesTierFileLimit(t *testing.T) {
	files := make([]models.FileDescriptor, 3) // free tier allows 2
	for i := range files {
		files[i] = models.FileDescriptor{Name: "f.png", MimeType: models.MimePNG, Size: 1000}
	}

	_, err := Quote(models.TierFree, files)
	require.Error(t, err)
}

func TestQuoteBatchRejectsEmpty(t *testing.T) {
	_, err := Quote(models.TierFree, nil)
	require.Error(t, err)
}
