package colormap

import (
	"image/color"
	"math"
	"testing"
)

func TestRampEndpoints(t *testing.T) {
	t.Parallel()

	if got := Reds.At(0); got != (color.RGBA{R: 254, G: 224, B: 210, A: 255}) {
		t.Fatalf("unexpected Reds.At(0): %#v", got)
	}
	if got := Reds.At(1); got != (color.RGBA{R: 165, G: 15, B: 21, A: 255}) {
		t.Fatalf("unexpected Reds.At(1): %#v", got)
	}
	if Reds.At(-3) != Reds.At(0) || Reds.At(7) != Reds.At(1) {
		t.Fatalf("expected out-of-range values to clamp")
	}
	if Reds.At(math.NaN()) != Reds.At(0) {
		t.Fatalf("expected NaN to clamp to the low end")
	}
}

func TestRampInterpolates(t *testing.T) {
	t.Parallel()

	r := Ramp{stops: []color.RGBA{{0, 0, 0, 255}, {200, 100, 50, 255}}}
	got := r.At(0.5)
	want := color.RGBA{R: 100, G: 50, B: 25, A: 255}
	if got != want {
		t.Fatalf("expected %#v, got %#v", want, got)
	}
}

func TestLookup(t *testing.T) {
	t.Parallel()

	for _, name := range Names() {
		if _, ok := Lookup(name); !ok {
			t.Fatalf("listed ramp %q not found", name)
		}
	}
	if _, ok := Lookup("seurat"); ok {
		t.Fatalf("unexpected ramp")
	}
}
