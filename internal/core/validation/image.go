package validation

import (
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"CasaBid/internal/core/domain"
)

// MaxImageBytes is the per-image upload limit.
const MaxImageBytes = 5 << 20

// CheckImage validates one uploaded image and returns a user-facing message,
// or "" when the image is acceptable. Both the declared content type and the
// sniffed one must be image/*.
func CheckImage(img *domain.DocumentImage) string {
	if img == nil || len(img.Data) == 0 {
		return "image is required"
	}
	if len(img.Data) > MaxImageBytes {
		return fmt.Sprintf("image must be at most %d MB", MaxImageBytes>>20)
	}
	if !strings.HasPrefix(strings.ToLower(img.ContentType), "image/") {
		return "file must be an image"
	}
	detected := mimetype.Detect(img.Data)
	if !strings.HasPrefix(detected.String(), "image/") {
		return "file content is not an image"
	}
	return ""
}
