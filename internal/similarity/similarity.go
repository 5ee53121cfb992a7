package similarity

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// Compared images are first normalized to a fixed standard square, ignoring
// aspect ratio, so that crops and re-encodes of the same photo still line up
// pixel for pixel.
const (
	StandardSize       = 256
	DuplicateThreshold = 0.95
	windowSize         = 8
)

// SSIM stabilization constants for 8-bit dynamic range: (K*L)^2 with
// K1=0.01, K2=0.03, L=255.
const (
	c1 = 6.5025
	c2 = 58.5225
)

// Detector decides whether images are near-duplicates of each other. One
// Detector is used per review pass; normalized images are cached by path so
// pairwise comparison does not re-decode the same file.
type Detector struct {
	cache map[string][]float64
}

func NewDetector() *Detector {
	return &Detector{cache: make(map[string][]float64)}
}

// IsDuplicate reports whether the candidate image is a near-duplicate of any
// image in others. Comparison is symmetric and pairwise; any failure to load
// or decode an image is a hard error for the caller.
func (d *Detector) IsDuplicate(candidate string, others []string) (bool, error) {
	if len(others) == 0 {
		return false, nil
	}

	base, err := d.load(candidate)
	if err != nil {
		return false, err
	}

	for _, other := range others {
		if other == candidate {
			continue
		}
		pixels, err := d.load(other)
		if err != nil {
			return false, err
		}
		if meanSSIM(base, pixels) >= DuplicateThreshold {
			return true, nil
		}
	}
	return false, nil
}

// load decodes, normalizes, and caches one image as a luminance plane.
func (d *Detector) load(path string) ([]float64, error) {
	if pixels, ok := d.cache[path]; ok {
		return pixels, nil
	}

	img, err := imaging.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load image %s: %w", path, err)
	}
	pixels := luminance(normalize(img))
	d.cache[path] = pixels
	return pixels, nil
}

// normalize resizes to the standard square with a "fill" fit, keeping an
// alpha channel.
func normalize(img image.Image) *image.NRGBA {
	return imaging.Fill(img, StandardSize, StandardSize, imaging.Center, imaging.Lanczos)
}

func luminance(img *image.NRGBA) []float64 {
	pixels := make([]float64, StandardSize*StandardSize)
	for y := 0; y < StandardSize; y++ {
		for x := 0; x < StandardSize; x++ {
			i := img.PixOffset(x, y)
			r := float64(img.Pix[i])
			g := float64(img.Pix[i+1])
			b := float64(img.Pix[i+2])
			pixels[y*StandardSize+x] = 0.299*r + 0.587*g + 0.114*b
		}
	}
	return pixels
}

// meanSSIM computes the structural-similarity index over non-overlapping
// 8x8 windows and averages it across the image.
func meanSSIM(a, b []float64) float64 {
	var sum float64
	var windows int

	for wy := 0; wy+windowSize <= StandardSize; wy += windowSize {
		for wx := 0; wx+windowSize <= StandardSize; wx += windowSize {
			sum += windowSSIM(a, b, wx, wy)
			windows++
		}
	}
	if windows == 0 {
		return 0
	}
	return sum / float64(windows)
}

func windowSSIM(a, b []float64, wx, wy int) float64 {
	const n = float64(windowSize * windowSize)

	var sumA, sumB float64
	for y := wy; y < wy+windowSize; y++ {
		for x := wx; x < wx+windowSize; x++ {
			sumA += a[y*StandardSize+x]
			sumB += b[y*StandardSize+x]
		}
	}
	meanA := sumA / n
	meanB := sumB / n

	var varA, varB, cov float64
	for y := wy; y < wy+windowSize; y++ {
		for x := wx; x < wx+windowSize; x++ {
			da := a[y*StandardSize+x] - meanA
			db := b[y*StandardSize+x] - meanB
			varA += da * da
			varB += db * db
			cov += da * db
		}
	}
	varA /= n - 1
	varB /= n - 1
	cov /= n - 1

	return ((2*meanA*meanB + c1) * (2*cov + c2)) /
		((meanA*meanA + meanB*meanB + c1) * (varA + varB + c2))
}
