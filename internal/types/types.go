package types

import "fmt"

// FitMode is the scaling/cropping policy mapping source media dimensions
// onto an output.
type FitMode string

const (
	FitStretch FitMode = "stretch"
	FitFill    FitMode = "fill" // alias of stretch, retained for compatibility
	FitCover   FitMode = "cover"
	FitFit     FitMode = "fit"
	FitContain FitMode = "contain" // alias of fit
)

// DefaultFitMode applies when neither a per-output override nor a global
// default is configured.
const DefaultFitMode = FitCover

// ParseFitMode validates a config or flag value.
func ParseFitMode(s string) (FitMode, error) {
	switch FitMode(s) {
	case FitStretch, FitFill, FitCover, FitFit, FitContain:
		return FitMode(s), nil
	default:
		return "", fmt.Errorf("unknown fit mode %q (want stretch|fill|cover|fit|contain)", s)
	}
}

// MediaKind tags a resolved media path as a still or a video.
type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
)
