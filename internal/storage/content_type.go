package storage

import (
	"mime"
	"path/filepath"
	"strings"
)

// =============================================================================
// Content Type Detection
// =============================================================================

// exportTypes covers the export extensions the mime package may not know
// on a minimal host.
var exportTypes = map[string]string{
	".geojson": "application/geo+json",
	".kml":     "application/vnd.google-earth.kml+xml",
	".csv":     "text/csv; charset=utf-8",
	".txt":     "text/plain; charset=utf-8",
	".pdf":     "application/pdf",
	".xlsx":    "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".json":    "application/json",
}

// DetectContentType determines the MIME type of a file.
//
// Detection priority:
// 1. If providedType is non-empty, use it directly
// 2. Known export extensions
// 3. mime.TypeByExtension
// 4. Fall back to "application/octet-stream"
func DetectContentType(providedType, filename string) string {
	if providedType != "" {
		return providedType
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if contentType, ok := exportTypes[ext]; ok {
		return contentType
	}
	if contentType := mime.TypeByExtension(ext); contentType != "" {
		return contentType
	}

	return "application/octet-stream"
}

// IsText returns true if the content type can be shown inline as text.
func IsText(contentType string) bool {
	baseType := strings.TrimSpace(strings.ToLower(strings.Split(contentType, ";")[0]))
	switch baseType {
	case "application/geo+json", "application/json", "application/vnd.google-earth.kml+xml":
		return true
	}
	return strings.HasPrefix(baseType, "text/")
}
