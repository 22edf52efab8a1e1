package imaging

import (
	"image"
	"image/color"
	"testing"
)

// checkerboard draws alternating blocks, a pattern far from a gradient.
func checkerboard(w, h, block int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.RGBA{A: 255}
			if (x/block+y/block)%2 == 0 {
				c = color.RGBA{R: 255, G: 255, B: 255, A: 255}
			}
			img.Set(x, y, c)
		}
	}
	return img
}

func TestPerceptualHash_SameImageAcrossEncodings(t *testing.T) {
	src := gradient(128, 96)

	fromPNG, err := PerceptualHash(pngBytes(t, src))
	if err != nil {
		t.Fatalf("hash png: %v", err)
	}
	fromJPEG, err := PerceptualHash(jpegBytes(t, src, 60))
	if err != nil {
		t.Fatalf("hash jpeg: %v", err)
	}

	if !fromPNG.Similar(fromJPEG) {
		d, _ := fromPNG.Distance(fromJPEG)
		t.Errorf("expected re-encoded copy to be similar, distance %d", d)
	}
}

func TestPerceptualHash_DifferentImages(t *testing.T) {
	a, err := PerceptualHash(pngBytes(t, gradient(128, 128)))
	if err != nil {
		t.Fatalf("hash gradient: %v", err)
	}
	b, err := PerceptualHash(pngBytes(t, checkerboard(128, 128, 16)))
	if err != nil {
		t.Fatalf("hash checkerboard: %v", err)
	}

	d, err := a.Distance(b)
	if err != nil {
		t.Fatalf("Distance: %v", err)
	}
	if d < DuplicateThreshold {
		t.Errorf("expected distinct images, distance %d", d)
	}
}

func TestPerceptualHash_InvalidData(t *testing.T) {
	if _, err := PerceptualHash([]byte("garbage")); err == nil {
		t.Error("expected error for non-image data")
	}
}

func TestFingerprint_Distance(t *testing.T) {
	tests := []struct {
		name    string
		a, b    Fingerprint
		want    int
		similar bool
	}{
		{name: "identical", a: 0xFF00FF00FF00FF00, b: 0xFF00FF00FF00FF00, want: 0, similar: true},
		{name: "one bit", a: 0, b: 1, want: 1, similar: true},
		{name: "nine bits", a: 0, b: 0x1FF, want: 9, similar: true},
		{name: "ten bits is not similar", a: 0, b: 0x3FF, want: 10, similar: false},
		{name: "all bits", a: 0, b: 0xFFFFFFFFFFFFFFFF, want: 64, similar: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.a.Distance(tt.b)
			if err != nil {
				t.Fatalf("Distance: %v", err)
			}
			if got != tt.want {
				t.Errorf("Distance = %d, want %d", got, tt.want)
			}
			if tt.a.Similar(tt.b) != tt.similar {
				t.Errorf("Similar = %v, want %v", !tt.similar, tt.similar)
			}
		})
	}
}

func TestFingerprint_StringRoundTrip(t *testing.T) {
	f := Fingerprint(0x00ab00cd00ef0012)
	s := f.String()
	if s != "00ab00cd00ef0012" {
		t.Errorf("String() = %s", s)
	}
	parsed, err := ParseFingerprint(s)
	if err != nil {
		t.Fatalf("ParseFingerprint: %v", err)
	}
	if parsed != f {
		t.Errorf("ParseFingerprint(%s) = %x, want %x", s, uint64(parsed), uint64(f))
	}

	for _, bad := range []string{"", "abc", "zzzzzzzzzzzzzzzz"} {
		if _, err := ParseFingerprint(bad); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}
