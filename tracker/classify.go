package tracker

import "strings"

// Document file types inferred from download surfaces.
const (
	FileTypeTermSheet      = "term-sheet"
	FileTypeTeaser         = "teaser"
	FileTypeFinancialModel = "financial-model"
	FileTypeNDA            = "nda"
	FileTypeUnknown        = "unknown"
)

// ClassifyFileType infers a document type from the visible label of a
// download surface. The Spanish "modelo" appears on the localized pages.
func ClassifyFileType(label string) string {
	t := strings.ToLower(label)
	switch {
	case strings.Contains(t, "term"):
		return FileTypeTermSheet
	case strings.Contains(t, "teaser"):
		return FileTypeTeaser
	case strings.Contains(t, "model") || strings.Contains(t, "modelo"):
		return FileTypeFinancialModel
	case strings.Contains(t, "nda"):
		return FileTypeNDA
	default:
		return FileTypeUnknown
	}
}
