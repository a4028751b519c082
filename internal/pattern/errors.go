package pattern

import "github.com/tstohn/scdemux/internal/apperr"

// errSegmentf reports a ConfigError the way the original's
// parseBarcodeData reports "PARAMETER ERROR: ..." to stderr — here it is
// returned to the caller instead of calling exit(1) directly.
func errSegmentf(format string, args ...interface{}) error {
	return apperr.Configf(format, args...)
}
