package watermark

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/stretchr/testify/require"
)

func whitePNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// buildPDF assembles a minimal valid PDF with the given number of empty
// pages, computing the cross-reference table as it goes.
func buildPDF(t *testing.T, pageCount int) []byte {
	t.Helper()
	var buf bytes.Buffer
	var offsets []int
	add := func(body string) {
		offsets = append(offsets, buf.Len())
		buf.WriteString(body)
	}

	buf.WriteString("%PDF-1.4\n")
	add("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")

	var kids []string
	for i := 0; i < pageCount; i++ {
		kids = append(kids, fmt.Sprintf("%d 0 R", 3+i))
	}
	add(fmt.Sprintf("2 0 obj\n<< /Type /Pages /Kids [%s] /Count %d >>\nendobj\n",
		strings.Join(kids, " "), pageCount))
	for i := 0; i < pageCount; i++ {
		add(fmt.Sprintf("%d 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << >> >>\nendobj\n", 3+i))
	}

	xref := buf.Len()
	size := len(offsets) + 1
	buf.WriteString(fmt.Sprintf("xref\n0 %d\n", size))
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		buf.WriteString(fmt.Sprintf("%010d 00000 n \n", off))
	}
	buf.WriteString(fmt.Sprintf("trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", size, xref))
	return buf.Bytes()
}

func TestOverlayWidthIsTwentyPercent(t *testing.T) {
	require.Equal(t, 200, overlayWidth(1000))
	require.Equal(t, 96, overlayWidth(480))
	require.Equal(t, 1, overlayWidth(5))
}

func TestApplyImagePreservesDimensions(t *testing.T) {
	src := whitePNG(t, 1000, 600)
	p := NewPipeline(Options{})

	out, err := p.Apply(context.Background(), Artifact{Name: "notes.png", Type: "image/png", Data: src}, KindImage)
	require.NoError(t, err)
	require.Equal(t, "notes.png", out.Name)
	require.Equal(t, "image/png", out.Type)

	img, format, err := image.Decode(bytes.NewReader(out.Data))
	require.NoError(t, err)
	require.Equal(t, "png", format)
	require.Equal(t, 1000, img.Bounds().Dx())
	require.Equal(t, 600, img.Bounds().Dy())

	// Inside the overlay region the white background is covered.
	r, g, b, _ := img.At(30, 20).RGBA()
	changed := r != 0xffff || g != 0xffff || b != 0xffff
	require.True(t, changed, "pixel under the overlay should not remain pure white")

	// Far outside the overlay the content is untouched.
	r, g, b, _ = img.At(900, 500).RGBA()
	require.True(t, r == 0xffff && g == 0xffff && b == 0xffff)
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	src := whitePNG(t, 200, 200)
	original := append([]byte(nil), src...)
	p := NewPipeline(Options{})

	_, err := p.Apply(context.Background(), Artifact{Name: "a.png", Type: "image/png", Data: src}, KindImage)
	require.NoError(t, err)
	require.Equal(t, original, src)
}

func TestApplyPDFStampsEveryPage(t *testing.T) {
	src := buildPDF(t, 3)
	p := NewPipeline(Options{})

	out, err := p.Apply(context.Background(), Artifact{Name: "exam.pdf", Type: "application/pdf", Data: src}, KindPDF)
	require.NoError(t, err)
	require.NotEqual(t, src, out.Data)

	count, err := api.PageCount(bytes.NewReader(out.Data), nil)
	require.NoError(t, err)
	require.Equal(t, 3, count)

	ctx, err := api.ReadContext(bytes.NewReader(out.Data), nil)
	require.NoError(t, err)
	require.NoError(t, api.ValidateContext(ctx))
	require.NoError(t, ctx.EnsurePageCount())

	// The source pages start with empty resource dicts, so an XObject entry
	// can only have come from the stamp. Every page must carry one.
	for pageNr := 1; pageNr <= count; pageNr++ {
		_, _, inh, err := ctx.PageDict(pageNr, false)
		require.NoError(t, err)
		require.NotNil(t, inh)
		xo, found := inh.Resources.Find("XObject")
		require.True(t, found, "page %d lacks the stamp resource", pageNr)
		xoDict, err := ctx.DereferenceDict(xo)
		require.NoError(t, err)
		require.NotEmpty(t, xoDict)
	}
}

func TestApplyReportsOutcome(t *testing.T) {
	type call struct {
		kind string
		err  error
	}
	var calls []call
	record := func(kind string, err error) {
		calls = append(calls, call{kind, err})
	}

	p := NewPipeline(Options{Observe: record})
	_, err := p.Apply(context.Background(), Artifact{Name: "a.png", Type: "image/png", Data: whitePNG(t, 16, 16)}, KindImage)
	require.NoError(t, err)
	require.Equal(t, []call{{"image", nil}}, calls)

	failing := NewPipeline(Options{AssetPath: "missing.png", AssetFS: fstest.MapFS{}, Observe: record})
	_, err = failing.Apply(context.Background(), Artifact{Name: "b.png", Type: "image/png", Data: whitePNG(t, 16, 16)}, KindImage)
	require.Error(t, err)
	require.Len(t, calls, 2)
	require.Equal(t, "image", calls[1].kind)
	require.ErrorIs(t, calls[1].err, ErrAssetUnavailable)
}

func TestApplyBackfillsMissingType(t *testing.T) {
	p := NewPipeline(Options{})
	data := whitePNG(t, 32, 32)

	out, err := p.Apply(context.Background(), Artifact{Name: "scan", Data: data}, Classify("", data))
	require.NoError(t, err)
	require.Equal(t, "image/png", out.Type)
}

func TestApplyAssetFailureAbortsSubmission(t *testing.T) {
	p := NewPipeline(Options{AssetPath: "missing.png", AssetFS: fstest.MapFS{}})

	_, err := p.Apply(context.Background(), Artifact{Name: "a.png", Type: "image/png", Data: whitePNG(t, 64, 64)}, KindImage)
	require.ErrorIs(t, err, ErrAssetUnavailable)
}

func TestApplyAllMirrorsInputOrderAndFailsClosed(t *testing.T) {
	p := NewPipeline(Options{})
	batch := []Artifact{
		{Name: "one.png", Type: "image/png", Data: whitePNG(t, 100, 100)},
		{Name: "two.pdf", Type: "application/pdf", Data: buildPDF(t, 1)},
	}

	out, err := p.ApplyAll(context.Background(), batch)
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.Equal(t, "one.png", out[0].Name)
	require.Equal(t, "two.pdf", out[1].Name)

	batch = append(batch, Artifact{Name: "script.sh", Type: "application/x-sh", Data: []byte("#!/bin/sh\n")})
	_, err = p.ApplyAll(context.Background(), batch)
	require.ErrorIs(t, err, ErrUnsupportedMedia)
}

func TestClassify(t *testing.T) {
	require.Equal(t, KindImage, Classify("image/png", nil))
	require.Equal(t, KindImage, Classify("image/jpeg", nil))
	require.Equal(t, KindPDF, Classify("application/pdf", nil))
	require.Equal(t, KindOther, Classify("text/plain", []byte("hello")))
	// Missing declaration falls back to sniffing.
	require.Equal(t, KindPDF, Classify("", []byte("%PDF-1.4\n")))
	require.Equal(t, KindImage, Classify("", whitePNG(t, 4, 4)))
}

func TestApplyOtherKindPassesThroughCopy(t *testing.T) {
	p := NewPipeline(Options{})
	in := Artifact{Name: "readme.txt", Type: "text/plain", Data: []byte("hello")}

	out, err := p.Apply(context.Background(), in, KindOther)
	require.NoError(t, err)
	require.Equal(t, in.Data, out.Data)

	out.Data[0] = 'H'
	require.Equal(t, byte('h'), in.Data[0], "output must be an independent copy")
}
