package modelkind

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseText_Aliases(t *testing.T) {
	ctx := context.Background()
	cases := map[string]TextKind{
		"BAAI/bge-small-en-v1.5":                 TextBGESmallENV15,
		"bge-small-en-v1.5":                      TextBGESmallENV15,
		"bge-base-en-v1.5":                       TextBGEBaseENV15,
		"BAAI/bge-large-en-v1.5":                 TextBGELargeENV15,
		"all-MiniLM-L6-v2":                       TextAllMiniLML6V2,
		"sentence-transformers/all-MiniLM-L6-v2": TextAllMiniLML6V2,
	}
	for name, want := range cases {
		require.Equal(t, want, ParseText(ctx, name), name)
	}
}

func TestParseText_UnknownUsesDefault(t *testing.T) {
	ctx := context.Background()
	got := ParseText(ctx, "totally-unknown-name")
	require.Equal(t, ParseText(ctx, "bge-small-en-v1.5"), got)
	require.Equal(t, DefaultText, got)

	// matching is exact, case differences are not folded
	require.Equal(t, DefaultText, ParseText(ctx, "BGE-BASE-EN-V1.5"))
	require.Equal(t, DefaultText, ParseText(ctx, ""))
}

func TestParseImage(t *testing.T) {
	ctx := context.Background()
	for _, name := range []string{"clip-ViT-B-32", "CLIP-ViT-B-32", "clip-vit-b-32"} {
		require.Equal(t, ImageClipViTB32, ParseImage(ctx, name))
	}
	require.Equal(t, DefaultImage, ParseImage(ctx, "resnet-50"))
}

func TestKindDimensions(t *testing.T) {
	require.Equal(t, 384, TextBGESmallENV15.Dimensions())
	require.Equal(t, 768, TextBGEBaseENV15.Dimensions())
	require.Equal(t, 1024, TextBGELargeENV15.Dimensions())
	require.Equal(t, 384, TextAllMiniLML6V2.Dimensions())
	require.Equal(t, 512, ImageClipViTB32.Dimensions())
	require.Equal(t, "BAAI/bge-base-en-v1.5", TextBGEBaseENV15.String())
}
