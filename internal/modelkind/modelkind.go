// Package modelkind maps user supplied model names onto the fixed set of
// encoders the engine knows how to build.
package modelkind

import (
	"context"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

type TextKind int

const (
	TextBGESmallENV15 TextKind = iota
	TextBGEBaseENV15
	TextBGELargeENV15
	TextAllMiniLML6V2
)

// DefaultText is returned for any unrecognized text model name.
const DefaultText = TextBGESmallENV15

type ImageKind int

const (
	ImageClipViTB32 ImageKind = iota
)

// DefaultImage is returned for any unrecognized image model name.
const DefaultImage = ImageClipViTB32

type kindInfo struct {
	name       string
	dimensions int
}

var textKinds = map[TextKind]kindInfo{
	TextBGESmallENV15: {name: "BAAI/bge-small-en-v1.5", dimensions: 384},
	TextBGEBaseENV15:  {name: "BAAI/bge-base-en-v1.5", dimensions: 768},
	TextBGELargeENV15: {name: "BAAI/bge-large-en-v1.5", dimensions: 1024},
	TextAllMiniLML6V2: {name: "sentence-transformers/all-MiniLM-L6-v2", dimensions: 384},
}

var imageKinds = map[ImageKind]kindInfo{
	ImageClipViTB32: {name: "Qdrant/clip-ViT-B-32-vision", dimensions: 512},
}

var textAliases = map[string]TextKind{
	"BAAI/bge-small-en-v1.5":                 TextBGESmallENV15,
	"bge-small-en-v1.5":                      TextBGESmallENV15,
	"BAAI/bge-base-en-v1.5":                  TextBGEBaseENV15,
	"bge-base-en-v1.5":                       TextBGEBaseENV15,
	"BAAI/bge-large-en-v1.5":                 TextBGELargeENV15,
	"bge-large-en-v1.5":                      TextBGELargeENV15,
	"sentence-transformers/all-MiniLM-L6-v2": TextAllMiniLML6V2,
	"all-MiniLM-L6-v2":                       TextAllMiniLML6V2,
}

var imageAliases = map[string]ImageKind{
	"clip-ViT-B-32": ImageClipViTB32,
	"CLIP-ViT-B-32": ImageClipViTB32,
	"clip-vit-b-32": ImageClipViTB32,
}

// String returns the canonical, fully qualified model name.
func (k TextKind) String() string {
	return textKinds[k].name
}

// Dimensions is the fixed output vector length of the model.
func (k TextKind) Dimensions() int {
	return textKinds[k].dimensions
}

func (k ImageKind) String() string {
	return imageKinds[k].name
}

func (k ImageKind) Dimensions() int {
	return imageKinds[k].dimensions
}

// LookupText matches name exactly against the known aliases.
func LookupText(name string) (TextKind, bool) {
	k, ok := textAliases[name]
	return k, ok
}

func LookupImage(name string) (ImageKind, bool) {
	k, ok := imageAliases[name]
	return k, ok
}

// ParseText never fails: unknown names resolve to DefaultText with a warning.
func ParseText(ctx context.Context, name string) TextKind {
	if k, ok := LookupText(name); ok {
		return k
	}
	logutil.GetLogger(ctx).Warn("unknown text model, using default",
		zap.String("model", name), zap.String("default", DefaultText.String()))
	return DefaultText
}

// ParseImage never fails: unknown names resolve to DefaultImage with a warning.
func ParseImage(ctx context.Context, name string) ImageKind {
	if k, ok := LookupImage(name); ok {
		return k
	}
	logutil.GetLogger(ctx).Warn("unknown image model, using default",
		zap.String("model", name), zap.String("default", DefaultImage.String()))
	return DefaultImage
}
