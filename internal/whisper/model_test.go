package whisper

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestModelSizesAreOrderedWithBaseDefault(t *testing.T) {
	t.Parallel()

	require.Equal(t, []ModelSize{ModelTiny, ModelBase, ModelSmall, ModelMedium, ModelLarge}, ModelSizes())
	require.Equal(t, ModelBase, DefaultModel)
	require.Equal(t, ModelSizes()[1], DefaultModel)
}

func TestParseModelSize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input   string
		want    ModelSize
		wantErr bool
	}{
		{input: "tiny", want: ModelTiny},
		{input: " Base ", want: ModelBase},
		{input: "LARGE", want: ModelLarge},
		{input: "", wantErr: true},
		{input: "large-v3", wantErr: true},
		{input: "huge", wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()

			got, err := ParseModelSize(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				require.True(t, errors.Is(err, ErrUnknownModel))
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestResolveModelMissingNeedsDownload(t *testing.T) {
	t.Parallel()

	modelDir := t.TempDir()
	resolved, err := ResolveModel(ModelBase, modelDir)
	require.NoError(t, err)
	require.Equal(t, ModelBase, resolved.Size)
	require.Equal(t, filepath.Join(modelDir, "ggml-base.bin"), resolved.Path)
	require.True(t, resolved.NeedsDownload)
}

func TestResolveModelExisting(t *testing.T) {
	t.Parallel()

	modelDir := t.TempDir()
	modelPath := filepath.Join(modelDir, "ggml-tiny.bin")
	require.NoError(t, os.WriteFile(modelPath, []byte("ok"), 0o644))

	resolved, err := ResolveModel(ModelTiny, modelDir)
	require.NoError(t, err)
	require.Equal(t, modelPath, resolved.Path)
	require.False(t, resolved.NeedsDownload)
}

func TestResolveModelLargeUsesV3Checkpoint(t *testing.T) {
	t.Parallel()

	resolved, err := ResolveModel(ModelLarge, t.TempDir())
	require.NoError(t, err)
	require.Equal(t, "ggml-large-v3.bin", filepath.Base(resolved.Path))
}

func TestResolveModelRejectsUnknownSizeAndEmptyDir(t *testing.T) {
	t.Parallel()

	_, err := ResolveModel("super-huge", t.TempDir())
	require.ErrorIs(t, err, ErrUnknownModel)

	_, err = ResolveModel(ModelTiny, " ")
	require.Error(t, err)
}

func TestRegistryModelsHavePinnedChecksums(t *testing.T) {
	t.Parallel()

	for _, size := range ModelSizes() {
		model, ok := LookupModel(size)
		require.True(t, ok)
		require.Lenf(t, model.SHA256, 64, "model %s should have pinned sha256", size)
	}
}
