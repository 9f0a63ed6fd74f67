package preprocess

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"github.com/parentgrade/gradecore/internal/config"
	"github.com/parentgrade/gradecore/internal/graderr"
)

func encodeJPEG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("failed to encode fixture: %v", err)
	}
	return buf.Bytes()
}

func solidImage(w, h int, c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestProcess_InvalidImage(t *testing.T) {
	_, err := Process(Blob{Data: []byte("not an image")}, 0, config.ImageConfig{})
	if err == nil {
		t.Fatal("expected error for undecodable blob")
	}
	if !graderr.Fatal(err) {
		t.Fatalf("expected a fatal error, got %v", err)
	}
}

func TestProcess_DownscalesOversizedPage(t *testing.T) {
	img := solidImage(400, 200, color.RGBA{R: 120, G: 120, B: 120, A: 255})
	cfg := config.ImageConfig{MaxLongSide: 200, JPEGQuality: 90}

	page, err := Process(Blob{Data: encodeJPEG(t, img)}, 0, cfg)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if page.Width != 200 {
		t.Fatalf("expected long side downscaled to 200, got width=%d height=%d", page.Width, page.Height)
	}
	if page.Height != 100 {
		t.Fatalf("expected proportional height 100, got %d", page.Height)
	}
}

func TestProcess_RejectsPathologicallyLargePage(t *testing.T) {
	img := solidImage(20, 20, color.RGBA{R: 10, G: 10, B: 10, A: 255})
	cfg := config.ImageConfig{MaxLongSide: 1, JPEGQuality: 90}

	_, err := Process(Blob{Data: encodeJPEG(t, img)}, 2, cfg)
	if err == nil {
		t.Fatal("expected TooLarge error")
	}
	if !graderr.Fatal(err) {
		t.Fatalf("expected a fatal error, got %v", err)
	}
}

func TestProcess_WhiteBalanceNeutralizesColorCast(t *testing.T) {
	// A strong red cast on an otherwise neutral page should be pulled
	// back toward gray by the white balance step.
	img := solidImage(40, 40, color.RGBA{R: 200, G: 100, B: 100, A: 255})
	cfg := config.ImageConfig{MaxLongSide: 3508, JPEGQuality: 95}

	page, err := Process(Blob{Data: encodeJPEG(t, img)}, 0, cfg)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	decoded, _, err := image.Decode(bytes.NewReader(page.Preprocessed))
	if err != nil {
		t.Fatalf("failed to decode output: %v", err)
	}
	r, g, b, _ := decoded.At(20, 20).RGBA()
	r8, g8, b8 := r>>8, g>>8, b>>8
	spread := int(r8) - int(g8)
	if spread < 0 {
		spread = -spread
	}
	if spread > 20 {
		t.Fatalf("expected channels pulled close together after white balance, got r=%d g=%d b=%d", r8, g8, b8)
	}
}

func TestProcessAll_PreservesPageOrder(t *testing.T) {
	img1 := solidImage(10, 10, color.RGBA{R: 10, G: 10, B: 10, A: 255})
	img2 := solidImage(10, 10, color.RGBA{R: 200, G: 200, B: 200, A: 255})
	cfg := config.ImageConfig{MaxLongSide: 3508, JPEGQuality: 90}

	pages, err := ProcessAll([]Blob{
		{Data: encodeJPEG(t, img1)},
		{Data: encodeJPEG(t, img2)},
	}, cfg)
	if err != nil {
		t.Fatalf("ProcessAll() error = %v", err)
	}
	if len(pages) != 2 || pages[0].PageIndex != 0 || pages[1].PageIndex != 1 {
		t.Fatalf("expected ordered page indices, got %+v", pages)
	}
}
