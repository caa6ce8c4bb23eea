package config

import "errors"

// Sentinel errors for internal use.
var (
	ErrInvalidConfig = errors.New("invalid configuration")

	// Page pipeline
	ErrMalformedSVG  = errors.New("malformed svg")
	ErrAssetNotFound = errors.New("asset not found")
	ErrRenderFailure = errors.New("template rendering failed")
)

// Error codes written to logs and the render audit table.
const (
	ErrorInvalidConfig = "ERROR_INVALID_CONFIG"
	ErrorMalformedSVG  = "ERROR_MALFORMED_SVG"
	ErrorAssetNotFound = "ERROR_ASSET_NOT_FOUND"
	ErrorRenderFailure = "ERROR_RENDER_FAILURE"
	ErrorInternal      = "ERROR_INTERNAL"
)

// Kind maps an error to its error code. Unknown errors map to ErrorInternal
// and nil maps to the empty string.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrMalformedSVG):
		return ErrorMalformedSVG
	case errors.Is(err, ErrAssetNotFound):
		return ErrorAssetNotFound
	case errors.Is(err, ErrRenderFailure):
		return ErrorRenderFailure
	case errors.Is(err, ErrInvalidConfig):
		return ErrorInvalidConfig
	default:
		return ErrorInternal
	}
}
