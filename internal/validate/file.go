// Package validate provides upload validation for logo images: extension
// allowlists, size limits and content sniffing.
package validate

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"path/filepath"
	"slices"
	"strings"

	_ "golang.org/x/image/webp"
)

// File validation errors
var (
	ErrEmpty           = errors.New("file is empty")
	ErrInvalidFileType = errors.New("invalid file type")
	ErrInvalidMIMEType = errors.New("invalid MIME type")
	ErrFileTooLarge    = errors.New("file too large")
)

// Image MIME types accepted for recognition.
const (
	MIMEImageJPEG = "image/jpeg"
	MIMEImagePNG  = "image/png"
	MIMEImageGIF  = "image/gif"
	MIMEImageWebP = "image/webp"
)

// AllowedImageTypes defines allowed image MIME types.
var AllowedImageTypes = []string{
	MIMEImageJPEG,
	MIMEImagePNG,
	MIMEImageGIF,
	MIMEImageWebP,
}

// formatMIME maps image.DecodeConfig format names to MIME types.
var formatMIME = map[string]string{
	"jpeg": MIMEImageJPEG,
	"png":  MIMEImagePNG,
	"gif":  MIMEImageGIF,
	"webp": MIMEImageWebP,
}

// mimeExtension is the canonical file extension for each accepted MIME type.
var mimeExtension = map[string]string{
	MIMEImageJPEG: ".jpg",
	MIMEImagePNG:  ".png",
	MIMEImageGIF:  ".gif",
	MIMEImageWebP: ".webp",
}

// FileConstraints defines validation constraints for file uploads.
type FileConstraints struct {
	AllowedExtensions []string // Lowercase, dot-prefixed (".png")
	AllowedTypes      []string // Allowed MIME types
	MaxSizeBytes      int64    // Maximum file size in bytes (0 = no maximum)
}

// ImageInfo describes a sniffed upload.
type ImageInfo struct {
	MIMEType string
	Width    int
	Height   int
	Size     int64
}

// Extension validates the filename's extension against the allowlist.
// An empty filename is accepted; there is nothing to check.
func Extension(filename string, allowed []string) error {
	if filename == "" {
		return nil
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if slices.Contains(allowed, ext) {
		return nil
	}
	return fmt.Errorf("%w: file type %s not allowed. Allowed types: %s",
		ErrInvalidFileType, ext, strings.Join(allowed, ", "))
}

// FileSize validates a file size against a maximum.
func FileSize(sizeBytes, maxBytes int64) error {
	if sizeBytes <= 0 {
		return ErrEmpty
	}
	if maxBytes > 0 && sizeBytes > maxBytes {
		return fmt.Errorf("%w: file size %.1fMB exceeds maximum allowed size of %.1fMB",
			ErrFileTooLarge, float64(sizeBytes)/1024/1024, float64(maxBytes)/1024/1024)
	}
	return nil
}

// MIMEType validates a MIME type against allowed types.
// Returns the normalized MIME type (lowercased) and an error if invalid.
func MIMEType(mimeType string, allowedTypes []string) (string, error) {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))

	if mimeType == "" {
		return "", fmt.Errorf("%w: could not detect file type", ErrInvalidMIMEType)
	}

	for _, allowed := range allowedTypes {
		if mimeType == strings.ToLower(allowed) {
			return mimeType, nil
		}
	}

	return "", fmt.Errorf("%w: invalid file type detected: %s", ErrInvalidMIMEType, mimeType)
}

// SniffImage decodes the image header to find its real format and dimensions.
// The declared content type of an upload is never trusted.
func SniffImage(data []byte) (ImageInfo, error) {
	if len(data) == 0 {
		return ImageInfo{}, ErrEmpty
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return ImageInfo{}, fmt.Errorf("%w: %v", ErrInvalidMIMEType, err)
	}
	mimeType, ok := formatMIME[format]
	if !ok {
		return ImageInfo{}, fmt.Errorf("%w: invalid file type detected: image/%s", ErrInvalidMIMEType, format)
	}
	return ImageInfo{
		MIMEType: mimeType,
		Width:    cfg.Width,
		Height:   cfg.Height,
		Size:     int64(len(data)),
	}, nil
}

// Upload runs the extension, size and content checks in that order.
func Upload(filename string, data []byte, constraints FileConstraints) (ImageInfo, error) {
	if err := Extension(filename, constraints.AllowedExtensions); err != nil {
		return ImageInfo{}, err
	}
	if err := FileSize(int64(len(data)), constraints.MaxSizeBytes); err != nil {
		return ImageInfo{}, err
	}
	info, err := SniffImage(data)
	if err != nil {
		return ImageInfo{}, err
	}
	allowed := constraints.AllowedTypes
	if len(allowed) == 0 {
		allowed = AllowedImageTypes
	}
	if _, err := MIMEType(info.MIMEType, allowed); err != nil {
		return ImageInfo{}, err
	}
	return info, nil
}

// ExtensionFor returns the canonical extension for an accepted MIME type,
// or ".bin" when unknown.
func ExtensionFor(mimeType string) string {
	if ext, ok := mimeExtension[strings.ToLower(mimeType)]; ok {
		return ext
	}
	return ".bin"
}

// ClientMaxSize is the size limit enforced before an upload leaves the client.
const ClientMaxSize = 10 * 1024 * 1024

// clientAllowedTypes mirrors what browsers report, which includes image/jpg.
var clientAllowedTypes = []string{"image/jpeg", "image/jpg", "image/png", "image/gif", "image/webp"}

// Client-side validation errors carry the messages shown to users.
var (
	ErrClientInvalidType = errors.New("Please select a valid image file (JPG, PNG, GIF, WebP).")
	ErrClientTooLarge    = errors.New("File size must be less than 10MB.")
	ErrClientNoFile      = errors.New("Please select an image file first.")
)

// ClientCheck is the pre-upload check run by the CLI client on the declared
// MIME type and size, before any bytes are sent.
func ClientCheck(declaredMIME string, size int64) error {
	if size == 0 && declaredMIME == "" {
		return ErrClientNoFile
	}
	if !slices.Contains(clientAllowedTypes, strings.ToLower(declaredMIME)) {
		return ErrClientInvalidType
	}
	if size > ClientMaxSize {
		return ErrClientTooLarge
	}
	return nil
}
