package fit

import (
	"math"
	"testing"

	"github.com/matjam/vidpaper/internal/types"
)

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestStretchFillsDestinationExactly(t *testing.T) {
	cases := []struct {
		srcW, srcH, dstW, dstH int
	}{
		{1920, 1080, 1920, 1080},
		{1280, 720, 3440, 1440},
		{4000, 3000, 1920, 1080},
		{1, 1, 2560, 1440},
	}
	for _, c := range cases {
		for _, mode := range []types.FitMode{types.FitStretch, types.FitFill} {
			tr := Compute(c.srcW, c.srcH, c.dstW, c.dstH, mode)
			if tr.OffsetX != 0 || tr.OffsetY != 0 {
				t.Errorf("%v %+v: offset = (%v,%v), want (0,0)", mode, c, tr.OffsetX, tr.OffsetY)
			}
			if !approx(tr.ScaleX*float64(c.srcW), float64(c.dstW)) ||
				!approx(tr.ScaleY*float64(c.srcH), float64(c.dstH)) {
				t.Errorf("%v %+v: scaled size = (%v,%v), want (%d,%d)",
					mode, c, tr.ScaleX*float64(c.srcW), tr.ScaleY*float64(c.srcH), c.dstW, c.dstH)
			}
		}
	}
}

func TestCoverScaleDominatesFit(t *testing.T) {
	dims := []struct {
		srcW, srcH, dstW, dstH int
	}{
		{1920, 1080, 2560, 1440},
		{3840, 2160, 1280, 1024},
		{640, 480, 3440, 1440},
		{1080, 1920, 1920, 1080},
		{7, 13, 1024, 768},
	}
	for _, d := range dims {
		cover := Compute(d.srcW, d.srcH, d.dstW, d.dstH, types.FitCover)
		fitTr := Compute(d.srcW, d.srcH, d.dstW, d.dstH, types.FitFit)
		contain := Compute(d.srcW, d.srcH, d.dstW, d.dstH, types.FitContain)

		if cover.ScaleX < fitTr.ScaleX {
			t.Errorf("%+v: cover scale %v < fit scale %v", d, cover.ScaleX, fitTr.ScaleX)
		}
		if fitTr != contain {
			t.Errorf("%+v: fit %+v != contain %+v", d, fitTr, contain)
		}
	}
}

func TestUniformModesPreserveAspect(t *testing.T) {
	for _, mode := range []types.FitMode{types.FitCover, types.FitFit, types.FitContain} {
		tr := Compute(1920, 1080, 1000, 1000, mode)
		if !approx(tr.ScaleX, tr.ScaleY) {
			t.Errorf("%v: non-uniform scale (%v, %v)", mode, tr.ScaleX, tr.ScaleY)
		}
	}
}

func TestFitLetterboxesCentered(t *testing.T) {
	// 2:1 source onto a square output: full width, centered vertically.
	tr := Compute(2000, 1000, 1000, 1000, types.FitFit)
	if !approx(tr.ScaleX, 0.5) {
		t.Fatalf("scale = %v, want 0.5", tr.ScaleX)
	}
	if !approx(tr.OffsetX, 0) || !approx(tr.OffsetY, 250) {
		t.Fatalf("offset = (%v,%v), want (0,250)", tr.OffsetX, tr.OffsetY)
	}
}

func TestCoverOverflowsCentered(t *testing.T) {
	// 2:1 source onto a square output: full height, cropped horizontally.
	tr := Compute(2000, 1000, 1000, 1000, types.FitCover)
	if !approx(tr.ScaleX, 1.0) {
		t.Fatalf("scale = %v, want 1.0", tr.ScaleX)
	}
	if !approx(tr.OffsetX, -500) || !approx(tr.OffsetY, 0) {
		t.Fatalf("offset = (%v,%v), want (-500,0)", tr.OffsetX, tr.OffsetY)
	}
}

func TestDegenerateInputsYieldIdentity(t *testing.T) {
	cases := [][4]int{
		{0, 1080, 1920, 1080},
		{1920, 0, 1920, 1080},
		{1920, 1080, 0, 1080},
		{1920, 1080, 1920, 0},
		{-1, -1, -1, -1},
	}
	for _, c := range cases {
		if tr := Compute(c[0], c[1], c[2], c[3], types.FitCover); tr != Identity {
			t.Errorf("Compute(%v) = %+v, want identity", c, tr)
		}
	}
}
