// Package watermark implements the binary transform applied to every upload
// before it is handed to storage. The transform is deterministic and free of
// side effects beyond reading the watermark asset.
package watermark

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"sync"

	"github.com/gabriel-vasile/mimetype"

	"github.com/openshelf/openshelf/internal/shared"
	"github.com/openshelf/openshelf/web"
)

var (
	// ErrUnsupportedMedia indicates a media kind the pipeline does not accept.
	ErrUnsupportedMedia = fmt.Errorf("%w: unsupported media type", shared.ErrValidation)
	// ErrAssetUnavailable indicates the watermark asset could not be loaded.
	// Submissions must fail atomically when this happens.
	ErrAssetUnavailable = fmt.Errorf("%w: watermark asset unavailable", shared.ErrProcessing)
)

// Kind classifies an upload for branching inside the pipeline.
type Kind uint8

const (
	KindOther Kind = iota
	KindImage
	KindPDF
)

// String names the kind for logs and metric labels.
func (k Kind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindPDF:
		return "pdf"
	default:
		return "other"
	}
}

// Classify derives the media kind from the declared MIME type, falling back
// to content sniffing when the declaration is absent or unrecognised.
func Classify(declaredType string, data []byte) Kind {
	if k := kindOf(declaredType); k != KindOther {
		return k
	}
	return kindOf(mimetype.Detect(data).String())
}

func kindOf(mimeType string) Kind {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	switch {
	case mimeType == "application/pdf":
		return KindPDF
	case strings.HasPrefix(mimeType, "image/"):
		return KindImage
	default:
		return KindOther
	}
}

// Artifact is one binary travelling through the pipeline. Name and Type are
// preserved on output.
type Artifact struct {
	Name string
	Type string
	Data []byte
}

// Options configures the pipeline.
type Options struct {
	// AssetPath overrides the embedded watermark image when non-empty.
	AssetPath string
	// AssetFS overrides the embedded asset filesystem; tests use this.
	AssetFS fs.FS
	// Observe, when set, is called with the outcome of every stamp attempt.
	Observe func(kind string, err error)
}

// Pipeline stamps uploads with the configured watermark asset.
type Pipeline struct {
	opts Options

	mu    sync.Mutex
	asset []byte
}

// NewPipeline constructs a Pipeline. The asset is loaded lazily on first use
// so a broken asset surfaces as a per-submission processing failure.
func NewPipeline(opts Options) *Pipeline {
	return &Pipeline{opts: opts}
}

// Apply returns a watermarked copy of the artifact. The input buffer is never
// mutated. Artifacts classified as neither image nor PDF pass through as an
// untouched copy; the upload surface rejects those before storage.
func (p *Pipeline) Apply(ctx context.Context, in Artifact, kind Kind) (Artifact, error) {
	out, err := p.apply(ctx, in, kind)
	if p.opts.Observe != nil {
		p.opts.Observe(kind.String(), err)
	}
	return out, err
}

func (p *Pipeline) apply(ctx context.Context, in Artifact, kind Kind) (Artifact, error) {
	if err := ctx.Err(); err != nil {
		return Artifact{}, err
	}

	out := Artifact{Name: in.Name, Type: in.Type}
	// An upload may arrive without a declared type; the sniffed type then
	// becomes the stored one.
	if out.Type == "" {
		out.Type = mimetype.Detect(in.Data).String()
	}

	switch kind {
	case KindImage, KindPDF:
		asset, err := p.loadAsset()
		if err != nil {
			return Artifact{}, err
		}
		var data []byte
		if kind == KindImage {
			data, err = stampImage(in.Data, asset)
		} else {
			data, err = stampPDF(in.Data, asset)
		}
		if err != nil {
			return Artifact{}, err
		}
		out.Data = data
	case KindOther:
		out.Data = append([]byte(nil), in.Data...)
	default:
		return Artifact{}, ErrUnsupportedMedia
	}

	return out, nil
}

// ApplyAll watermarks a batch sequentially. Output order mirrors input order
// and any failure aborts the whole batch.
func (p *Pipeline) ApplyAll(ctx context.Context, in []Artifact) ([]Artifact, error) {
	out := make([]Artifact, 0, len(in))
	for _, artifact := range in {
		kind := Classify(artifact.Type, artifact.Data)
		if kind == KindOther {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedMedia, artifact.Type)
		}
		stamped, err := p.Apply(ctx, artifact, kind)
		if err != nil {
			return nil, err
		}
		out = append(out, stamped)
	}
	return out, nil
}

func (p *Pipeline) loadAsset() ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.asset != nil {
		return p.asset, nil
	}

	var (
		data []byte
		err  error
	)
	switch {
	case p.opts.AssetPath != "" && p.opts.AssetFS != nil:
		data, err = fs.ReadFile(p.opts.AssetFS, p.opts.AssetPath)
	case p.opts.AssetPath != "":
		data, err = os.ReadFile(p.opts.AssetPath)
	default:
		data, err = web.Assets.ReadFile(web.DefaultWatermarkPath)
	}
	if err != nil {
		return nil, errors.Join(ErrAssetUnavailable, err)
	}

	p.asset = data
	return p.asset, nil
}
