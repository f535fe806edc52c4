package extract

// MIMEType enumerates the supported upload content types. Anything else is
// rejected before extraction is attempted.
type MIMEType int

const (
	MIMEUnknown MIMEType = iota
	MIMEPlainText
	MIMEPDF
	MIMEDocx
	MIMEXlsx
	MIMEPptx
)

const (
	contentTypePlainText = "text/plain"
	contentTypePDF       = "application/pdf"
	contentTypeDocx      = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	contentTypeXlsx      = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	contentTypePptx      = "application/vnd.openxmlformats-officedocument.presentationml.presentation"
)

// ParseMIMEType maps a declared content type onto the supported set.
func ParseMIMEType(contentType string) (MIMEType, bool) {
	switch contentType {
	case contentTypePlainText:
		return MIMEPlainText, true
	case contentTypePDF:
		return MIMEPDF, true
	case contentTypeDocx:
		return MIMEDocx, true
	case contentTypeXlsx:
		return MIMEXlsx, true
	case contentTypePptx:
		return MIMEPptx, true
	default:
		return MIMEUnknown, false
	}
}

func (m MIMEType) String() string {
	switch m {
	case MIMEPlainText:
		return contentTypePlainText
	case MIMEPDF:
		return contentTypePDF
	case MIMEDocx:
		return contentTypeDocx
	case MIMEXlsx:
		return contentTypeXlsx
	case MIMEPptx:
		return contentTypePptx
	default:
		return "unknown"
	}
}
