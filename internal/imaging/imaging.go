// Package imaging validates raw image bytes and re-encodes the survivors
// into a bounded, upload-friendly JPEG.
package imaging

import (
	"bytes"
	"image"
	"image/jpeg"

	// Decoders for the formats blog asset hosts actually serve.
	_ "image/gif"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"golang.org/x/image/draw"
)

// Verdict describes the outcome of processing one raw image.
type Verdict string

// Rejections are expected and frequent; each gets its own verdict so the
// pipeline can count why candidates drop out.
const (
	VerdictAccepted    Verdict = "accepted"
	VerdictTooFewBytes Verdict = "too_few_bytes"
	VerdictUndecodable Verdict = "undecodable"
	VerdictTooSmall    Verdict = "too_small"
	VerdictBadAspect   Verdict = "bad_aspect"
	VerdictEncodeFail  Verdict = "encode_fail"
)

// Options holds the acceptance thresholds and encoding parameters.
type Options struct {
	MinBytes       int
	MinWidth       int
	MinHeight      int
	MinAspectRatio float64
	MaxAspectRatio float64
	MaxSidePx      int
	JPEGQuality    int
}

// Encoder applies the acceptance rules and re-encodes accepted images.
type Encoder struct {
	opts Options
}

// New constructs an Encoder.
func New(opts Options) *Encoder {
	return &Encoder{opts: opts}
}

// Process runs the rejection gauntlet over raw bytes. On acceptance it
// returns a JPEG no larger than MaxSidePx on its longest side; otherwise
// the verdict names the first failed rule. Never returns an error: a bad
// image is a no-result for its candidate, not a failure.
func (e *Encoder) Process(raw []byte) ([]byte, Verdict) {
	if len(raw) < e.opts.MinBytes {
		return nil, VerdictTooFewBytes
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return nil, VerdictUndecodable
	}
	if cfg.Width < e.opts.MinWidth || cfg.Height < e.opts.MinHeight {
		return nil, VerdictTooSmall
	}
	ratio := float64(cfg.Width) / float64(cfg.Height)
	if ratio > e.opts.MaxAspectRatio || ratio < e.opts.MinAspectRatio {
		return nil, VerdictBadAspect
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, VerdictUndecodable
	}
	img = e.fitWithinBounds(img)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: e.opts.JPEGQuality}); err != nil {
		return nil, VerdictEncodeFail
	}
	return buf.Bytes(), VerdictAccepted
}

// fitWithinBounds downscales so the longest side does not exceed
// MaxSidePx, preserving aspect ratio with Catmull-Rom resampling.
// Images already within bounds pass through unscaled.
func (e *Encoder) fitWithinBounds(img image.Image) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	longest := w
	if h > longest {
		longest = h
	}
	if longest <= e.opts.MaxSidePx {
		return img
	}

	scale := float64(e.opts.MaxSidePx) / float64(longest)
	dstW := int(float64(w) * scale)
	dstH := int(float64(h) * scale)
	if dstW < 1 {
		dstW = 1
	}
	if dstH < 1 {
		dstH = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, dstW, dstH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Src, nil)
	return dst
}
