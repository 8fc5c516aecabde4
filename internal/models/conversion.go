package models

// Supported input mime types for table extraction.
const (
	MimePDF  = "application/pdf"
	MimePNG  = "image/png"
	MimeJPEG = "image/jpeg"
	MimeWebP = "image/webp"
	MimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MimeDOC  = "application/msword"
)

// FileDescriptor describes one uploaded file for quoting. Pages is optional;
// zero means unknown (the quote falls back to byte size for PDFs).
type FileDescriptor struct {
	Name     string `json:"name"`
	MimeType string `json:"mime_type"`
	Size     int64  `json:"size"`
	Pages    int    `json:"pages,omitzero"`
}

// FileInput is a file descriptor plus the raw bytes handed to the extractor.
type FileInput struct {
	FileDescriptor
	Data []byte
}

// TableArtifact is one extracted table, rendered as CSV.
type TableArtifact struct {
	Name     string `json:"name"`
	CSV      string `json:"csv"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
	Cached   bool   `json:"cached,omitzero"`
}

// ConversionResult is the consumption-path response payload.
type ConversionResult struct {
	ConversionID  string          `json:"conversion_id"`
	Artifacts     []TableArtifact `json:"artifacts"`
	UnitsCharged  int64           `json:"units_charged"`
	PlanDebit     int64           `json:"plan_debit"`
	RefillDebit   int64           `json:"refill_debit"`
	PlanCredits   int64           `json:"plan_credits"`
	RefillCredits int64           `json:"refill_credits"`
}
