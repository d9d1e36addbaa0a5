package services

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/Lllllllleong/paymentproofflow/internal/staging"
)

// ConvertMode says what conversion, if any, a downloaded source needs before
// it is a JPEG tile.
type ConvertMode int

const (
	// ConvertNone: the source already is a JPEG tile.
	ConvertNone ConvertMode = iota
	// ConvertImage: a single non-JPEG image needing a re-encode.
	ConvertImage
	// ConvertDocument: a paginated document needing a page count and
	// per-page rasterization.
	ConvertDocument
)

// Route is the routing decision for one source reference: where the download
// lands and how it is converted.
type Route struct {
	Extension string
	Stage     staging.Stage
	Mode      ConvertMode
}

// ErrExtensionUnresolvable is returned when a source URL carries no file
// extension to route on.
var ErrExtensionUnresolvable = errors.New("cannot resolve file extension")

// UnsupportedExtensionError marks a source whose extension is outside every
// supported class.
type UnsupportedExtensionError struct {
	Extension string
}

func (e *UnsupportedExtensionError) Error() string {
	return fmt.Sprintf("file extension is not supported: %s", e.Extension)
}

var convertibleImageExtensions = map[string]bool{
	"png":  true,
	"webp": true,
	"gif":  true,
	"avif": true,
	"tif":  true,
	"tiff": true,
	"svg":  true,
}

// ResolveRoute classifies one source reference. It is a pure decision with no
// side effects: identical inputs always produce identical routes.
func ResolveRoute(rawURL string, fileCount int) (Route, error) {
	ext, err := fileExtension(rawURL)
	if err != nil {
		return Route{}, err
	}

	switch {
	case ext == "jpg" || ext == "jpeg":
		stage := staging.StagePendingUpload
		if fileCount > 1 {
			stage = staging.StagePendingCombine
		}
		return Route{Extension: ext, Stage: stage, Mode: ConvertNone}, nil
	case convertibleImageExtensions[ext]:
		return Route{Extension: ext, Stage: staging.StageRawDownload, Mode: ConvertImage}, nil
	case ext == "pdf":
		return Route{Extension: ext, Stage: staging.StageRawDownload, Mode: ConvertDocument}, nil
	default:
		return Route{}, &UnsupportedExtensionError{Extension: ext}
	}
}

// fileExtension extracts the case-folded extension from the URL's last path
// segment.
func fileExtension(rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrExtensionUnresolvable, rawURL)
	}
	base := path.Base(parsed.Path)
	dot := strings.LastIndexByte(base, '.')
	if dot < 0 || dot == len(base)-1 {
		return "", fmt.Errorf("%w: %s", ErrExtensionUnresolvable, rawURL)
	}
	return strings.ToLower(base[dot+1:]), nil
}
