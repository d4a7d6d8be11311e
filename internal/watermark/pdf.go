package watermark

import (
	"bytes"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/openshelf/openshelf/internal/shared"
)

// pdfStampDesc places the watermark near the top-left of every page with a
// fixed margin, scaled to 20% at half opacity.
const pdfStampDesc = "scalefactor:0.2 abs, position:tl, offset:10 -10, opacity:0.5, rotation:0"

// stampPDF embeds the watermark image on every page of a PDF document.
func stampPDF(src, asset []byte) ([]byte, error) {
	wm, err := api.ImageWatermarkForReader(bytes.NewReader(asset), pdfStampDesc, true, false, types.POINTS)
	if err != nil {
		return nil, fmt.Errorf("%w: prepare stamp: %v", ErrAssetUnavailable, err)
	}

	var out bytes.Buffer
	// nil page selection stamps all pages of a multi-page document.
	if err := api.AddWatermarks(bytes.NewReader(src), &out, nil, wm, nil); err != nil {
		return nil, fmt.Errorf("%w: stamp pdf: %v", shared.ErrProcessing, err)
	}
	return out.Bytes(), nil
}
