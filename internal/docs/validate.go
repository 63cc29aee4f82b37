// ABOUTME: Client-side file-type validation for document uploads
// ABOUTME: Accepts PDF and Office document formats by media type or extension

package docs

import (
	"errors"
	"fmt"
	"regexp"
)

// ErrUnsupportedType rejects files that are not PDF, DOC/DOCX or PPT/PPTX.
var ErrUnsupportedType = errors.New("unsupported file type")

// acceptedMediaTypes are the declared MIME types the pipeline ingests.
var acceptedMediaTypes = map[string]bool{
	"application/pdf": true,
	"application/msword": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
	"application/vnd.ms-powerpoint": true,
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": true,
}

var acceptedExtension = regexp.MustCompile(`(?i)\.(pdf|docx?|pptx?)$`)

// ValidateFile accepts a file when either its declared media type or its
// filename extension matches an ingestible format. It runs before any
// network call; a rejected file sends nothing.
func ValidateFile(filename, mediaType string) error {
	if acceptedMediaTypes[mediaType] {
		return nil
	}
	if acceptedExtension.MatchString(filename) {
		return nil
	}
	return fmt.Errorf("%s: %w (want PDF, DOCX or PPTX)", filename, ErrUnsupportedType)
}
