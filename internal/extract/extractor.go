// Package extract turns uploaded file blobs into plain text. Plain text is
// decoded directly; every other supported type is delegated to a layout-aware
// document intelligence service, with a local library fallback for PDFs when
// no service is configured.
package extract

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"converge/internal/pkg/pdfextract"
)

type Extractor struct {
	docIntel *DocIntelClient
}

// NewExtractor builds an extractor. docIntel may be nil, in which case only
// plain text and the PDF fallback path are available.
func NewExtractor(docIntel *DocIntelClient) *Extractor {
	return &Extractor{docIntel: docIntel}
}

// Extract converts blob into plain text according to its declared type.
// Garbled but non-empty output is best effort, not an error.
func (e *Extractor) Extract(ctx context.Context, blob []byte, mime MIMEType) (string, error) {
	switch mime {
	case MIMEPlainText:
		return decodePlainText(blob), nil
	case MIMEPDF:
		if e.docIntel == nil {
			text, err := pdfextract.ExtractText(bytes.NewReader(blob))
			if err != nil {
				return "", fmt.Errorf("extract pdf text failed: %w", err)
			}
			return text, nil
		}
		return e.docIntel.Analyze(ctx, blob)
	case MIMEDocx, MIMEXlsx, MIMEPptx:
		if e.docIntel == nil {
			return "", fmt.Errorf("document intelligence service not configured for %s", mime)
		}
		return e.docIntel.Analyze(ctx, blob)
	default:
		return "", fmt.Errorf("unsupported content type %s", mime)
	}
}

func decodePlainText(blob []byte) string {
	if utf8.Valid(blob) {
		return string(blob)
	}
	// best effort for non-UTF8 input: keep what decodes
	return strings.ToValidUTF8(string(blob), "")
}
