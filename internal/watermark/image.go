package watermark

import (
	"bytes"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"math"

	"github.com/disintegration/imaging"

	"github.com/openshelf/openshelf/internal/shared"
)

const (
	// overlayScale sizes the watermark relative to the source width.
	overlayScale = 0.2
	// overlayOpacity keeps the underlying content legible.
	overlayOpacity = 0.5
	// overlayMargin anchors the overlay at a fixed offset from the top-left.
	overlayMargin = 10

	jpegQuality = 90
)

// overlayWidth returns the watermark width for a source of the given width.
func overlayWidth(srcWidth int) int {
	return int(math.Round(float64(srcWidth) * overlayScale))
}

// stampImage overlays the watermark onto a raster image and re-encodes it in
// the source format. Output dimensions equal input dimensions.
func stampImage(src, asset []byte) ([]byte, error) {
	img, format, err := image.Decode(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("%w: decode image: %v", shared.ErrProcessing, err)
	}

	mark, err := imaging.Decode(bytes.NewReader(asset))
	if err != nil {
		return nil, fmt.Errorf("%w: decode asset: %v", ErrAssetUnavailable, err)
	}

	width := img.Bounds().Dx()
	scaled := imaging.Resize(mark, overlayWidth(width), 0, imaging.Lanczos)
	stamped := imaging.Overlay(img, scaled, image.Pt(overlayMargin, overlayMargin), overlayOpacity)

	var buf bytes.Buffer
	switch format {
	case "png":
		err = png.Encode(&buf, stamped)
	case "jpeg":
		err = jpeg.Encode(&buf, stamped, &jpeg.Options{Quality: jpegQuality})
	case "gif":
		err = gif.Encode(&buf, stamped, nil)
	default:
		return nil, fmt.Errorf("%w: image format %q", ErrUnsupportedMedia, format)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: encode %s: %v", shared.ErrProcessing, format, err)
	}
	return buf.Bytes(), nil
}
