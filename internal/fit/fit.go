// Package fit computes how a source frame maps onto an output.
package fit

import "github.com/matjam/vidpaper/internal/types"

// Transform describes where a scaled source frame lands on the
// destination. Offsets are in destination pixels and may be negative when
// the scaled content overflows (cover) or positive when it is letterboxed
// (fit/contain).
type Transform struct {
	ScaleX  float64
	ScaleY  float64
	OffsetX float64
	OffsetY float64
}

// Identity is the no-op transform returned for degenerate inputs.
var Identity = Transform{ScaleX: 1, ScaleY: 1}

// Compute is total: zero or negative dimensions yield Identity rather
// than an error, so callers never have to special-case a not-yet-configured
// output.
func Compute(srcW, srcH, dstW, dstH int, mode types.FitMode) Transform {
	if srcW <= 0 || srcH <= 0 || dstW <= 0 || dstH <= 0 {
		return Identity
	}

	sx := float64(dstW) / float64(srcW)
	sy := float64(dstH) / float64(srcH)

	switch mode {
	case types.FitStretch, types.FitFill:
		return Transform{ScaleX: sx, ScaleY: sy}

	case types.FitFit, types.FitContain:
		s := min(sx, sy)
		return centered(srcW, srcH, dstW, dstH, s)

	case types.FitCover:
		s := max(sx, sy)
		return centered(srcW, srcH, dstW, dstH, s)

	default:
		return Compute(srcW, srcH, dstW, dstH, types.DefaultFitMode)
	}
}

func centered(srcW, srcH, dstW, dstH int, s float64) Transform {
	w := float64(srcW) * s
	h := float64(srcH) * s
	return Transform{
		ScaleX:  s,
		ScaleY:  s,
		OffsetX: (float64(dstW) - w) / 2,
		OffsetY: (float64(dstH) - h) / 2,
	}
}
