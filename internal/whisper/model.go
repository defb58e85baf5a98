package whisper

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ModelSize is one of the fixed whisper size classes a job can select.
type ModelSize string

const (
	ModelTiny   ModelSize = "tiny"
	ModelBase   ModelSize = "base"
	ModelSmall  ModelSize = "small"
	ModelMedium ModelSize = "medium"
	ModelLarge  ModelSize = "large"
)

const DefaultModel = ModelBase

var ErrUnknownModel = errors.New("unknown model size")

type Model struct {
	Size     ModelSize
	FileName string
	URL      string
	SHA256   string
}

type ResolvedModel struct {
	Size          ModelSize
	Path          string
	URL           string
	SHA256        string
	NeedsDownload bool
}

var sizes = []ModelSize{ModelTiny, ModelBase, ModelSmall, ModelMedium, ModelLarge}

var registry = map[ModelSize]Model{
	ModelTiny: {
		Size:     ModelTiny,
		FileName: "ggml-tiny.bin",
		URL:      "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-tiny.bin",
		SHA256:   "be07e048e1e599ad46341c8d2a135645097a538221678b7acdd1b1919c6e1b21",
	},
	ModelBase: {
		Size:     ModelBase,
		FileName: "ggml-base.bin",
		URL:      "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-base.bin",
		SHA256:   "60ed5bc3dd14eea856493d334349b405782ddcaf0028d4b5df4088345fba2efe",
	},
	ModelSmall: {
		Size:     ModelSmall,
		FileName: "ggml-small.bin",
		URL:      "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-small.bin",
		SHA256:   "1be3a9b2063867b937e64e2ec7483364a79917e157fa98c5d94b5c1fffea987b",
	},
	ModelMedium: {
		Size:     ModelMedium,
		FileName: "ggml-medium.bin",
		URL:      "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-medium.bin",
		SHA256:   "6c14d5adee5f86394037b4e4e8b59f1673b6cee10e3cf0b11bbdbee79c156208",
	},
	// "large" tracks the newest large checkpoint.
	ModelLarge: {
		Size:     ModelLarge,
		FileName: "ggml-large-v3.bin",
		URL:      "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-large-v3.bin",
		SHA256:   "64d182b440b98d5203c4f9bd541544d84c605196c4f7b845dfa11fb23594d1e2",
	},
}

// ModelSizes returns the selectable sizes from smallest to largest.
func ModelSizes() []ModelSize {
	out := make([]ModelSize, len(sizes))
	copy(out, sizes)
	return out
}

func SizeNames() []string {
	names := make([]string, 0, len(sizes))
	for _, size := range sizes {
		names = append(names, string(size))
	}
	return names
}

func ParseModelSize(input string) (ModelSize, error) {
	size := ModelSize(strings.ToLower(strings.TrimSpace(input)))
	if !size.Valid() {
		return "", fmt.Errorf("%w %q (known sizes: %s)", ErrUnknownModel, input, strings.Join(SizeNames(), ", "))
	}
	return size, nil
}

func (s ModelSize) Valid() bool {
	_, ok := registry[s]
	return ok
}

func (s ModelSize) String() string {
	return string(s)
}

func LookupModel(size ModelSize) (Model, bool) {
	model, ok := registry[size]
	return model, ok
}

func ResolveModel(size ModelSize, modelDir string) (ResolvedModel, error) {
	model, ok := LookupModel(size)
	if !ok {
		return ResolvedModel{}, fmt.Errorf("%w %q", ErrUnknownModel, size)
	}
	if strings.TrimSpace(modelDir) == "" {
		return ResolvedModel{}, errors.New("model directory must not be empty")
	}

	modelPath := filepath.Join(modelDir, model.FileName)
	info, err := os.Stat(modelPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return ResolvedModel{}, fmt.Errorf("stat model path: %w", err)
	case info.IsDir():
		return ResolvedModel{}, fmt.Errorf("model path %s is a directory", modelPath)
	}

	return ResolvedModel{
		Size:          model.Size,
		Path:          modelPath,
		URL:           model.URL,
		SHA256:        model.SHA256,
		NeedsDownload: err != nil,
	}, nil
}
