// Package preprocess decodes uploaded worksheet photos, downscales
// oversized pages, applies a gray-world white balance, and re-encodes
// them to JPEG — spec.md §4.1. The same preprocessed bytes are handed to
// the VLM, OCR, and Annotator so all three agree on pixel geometry.
package preprocess

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"

	"github.com/parentgrade/gradecore/internal/config"
	"github.com/parentgrade/gradecore/internal/graderr"
	"github.com/parentgrade/gradecore/internal/model"
)

// Blob is one uploaded page before decoding.
type Blob struct {
	Data     []byte
	MimeHint string
}

// hardCapMultiplier sets the rejection ceiling at a multiple of the
// configured downscale cap (config.ImageConfig.MaxLongSide). Images
// under this ceiling are resized to fit the cap; images over it are
// rejected with graderr.ErrTooLarge rather than resized, since a
// multi-gigapixel upload is more likely a corrupt/malicious payload
// than a phone photo worth salvaging.
const hardCapMultiplier = 6

// Process decodes and normalizes one page, per spec.md §4.1's four-step
// algorithm: decode+downscale, gray-world white balance, re-encode,
// dimension caching.
func Process(blob Blob, pageIndex int, cfg config.ImageConfig) (model.Page, error) {
	img, _, err := image.Decode(bytes.NewReader(blob.Data))
	if err != nil {
		return model.Page{}, fmt.Errorf("%w: page %d: %v", graderr.ErrInvalidImage, pageIndex, err)
	}

	maxSide := cfg.MaxLongSide
	if maxSide <= 0 {
		maxSide = 3508
	}

	b := img.Bounds()
	longSide := b.Dx()
	if b.Dy() > longSide {
		longSide = b.Dy()
	}
	// Images up to hardCapMultiplier times the configured cap are
	// downscaled (spec.md §4.1 step 1); beyond that we refuse rather
	// than risk a multi-second resize of a pathological upload — the
	// configurable cap and the rejection ceiling are deliberately
	// distinct (spec.md §4.1's contract and algorithm read differently
	// on this point; see DESIGN.md Open Question resolution).
	if longSide > maxSide*hardCapMultiplier {
		return model.Page{}, fmt.Errorf("%w: page %d: %dpx exceeds hard cap of %dpx", graderr.ErrTooLarge, pageIndex, longSide, maxSide*hardCapMultiplier)
	}
	if longSide > maxSide {
		if b.Dx() >= b.Dy() {
			img = imaging.Resize(img, maxSide, 0, imaging.Lanczos)
		} else {
			img = imaging.Resize(img, 0, maxSide, imaging.Lanczos)
		}
	}

	balanced := grayWorldWhiteBalance(img)

	quality := cfg.JPEGQuality
	if quality <= 0 {
		quality = 85
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, balanced, &jpeg.Options{Quality: quality}); err != nil {
		return model.Page{}, fmt.Errorf("%w: page %d: failed to encode: %v", graderr.ErrInvalidImage, pageIndex, err)
	}

	bounds := balanced.Bounds()
	return model.Page{
		PageIndex:    pageIndex,
		Width:        bounds.Dx(),
		Height:       bounds.Dy(),
		Original:     blob.Data,
		Preprocessed: buf.Bytes(),
		Decoded:      balanced,
	}, nil
}

// ProcessAll preprocesses every blob in order, one after another on the
// calling goroutine; internal/grading calls it directly before starting
// the VLM and OCR requests.
func ProcessAll(blobs []Blob, cfg config.ImageConfig) ([]model.Page, error) {
	pages := make([]model.Page, len(blobs))
	for i, b := range blobs {
		p, err := Process(b, i, cfg)
		if err != nil {
			return nil, err
		}
		pages[i] = p
	}
	return pages, nil
}

// grayWorldWhiteBalance removes color cast by scaling each channel so its
// mean equals the joint mean of all three channels, then clipping to
// [0,255]. No library in the example corpus models this specific
// algorithm (see DESIGN.md); it is implemented directly over image.NRGBA.
func grayWorldWhiteBalance(src image.Image) *image.NRGBA {
	img := imaging.Clone(src) // ensures a mutable NRGBA buffer regardless of src's concrete type
	bounds := img.Bounds()

	var sumR, sumG, sumB float64
	count := float64(bounds.Dx() * bounds.Dy())
	if count == 0 {
		return img
	}

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			c := img.NRGBAAt(x, y)
			sumR += float64(c.R)
			sumG += float64(c.G)
			sumB += float64(c.B)
		}
	}

	meanR := sumR / count
	meanG := sumG / count
	meanB := sumB / count
	if meanR == 0 || meanG == 0 || meanB == 0 {
		return img
	}
	joint := (meanR + meanG + meanB) / 3.0

	scaleR := joint / meanR
	scaleG := joint / meanG
	scaleB := joint / meanB

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			c := img.NRGBAAt(x, y)
			img.SetNRGBA(x, y, color.NRGBA{
				R: clip8(float64(c.R) * scaleR),
				G: clip8(float64(c.G) * scaleG),
				B: clip8(float64(c.B) * scaleB),
				A: c.A,
			})
		}
	}
	return img
}

func clip8(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
