package domain

import (
	"context"
	"io"
)

const (
	// LegacyImagePrefix starts an image value that still references a file on disk.
	LegacyImagePrefix = "/uploads/"
	// InlineImagePrefix starts an image value that carries its own data.
	InlineImagePrefix = "data:"
	// MaxUploadSize determines the maximum filesize of an image to be uploaded.
	MaxUploadSize int64 = 5 << 20 // 5 Megabyte
)

// Bounds is the box an image is scaled down into. Smaller images are never upscaled.
type Bounds struct {
	Width  int
	Height int
}

// ImageService turns uploaded images into self-contained inline values, and migrates
// legacy file references to inline values.
type ImageService interface {
	Normalize(ctx context.Context, r io.Reader, b Bounds) (string, error)
	Inline(ctx context.Context, ref string, b Bounds) (value string, migrated bool, err error)
	RemoveLegacy(ref string) error
}

var (
	// PostBounds is the default box post images are scaled into.
	PostBounds = Bounds{Width: 800, Height: 800}
	// AvatarBounds is the default box avatars are scaled into.
	AvatarBounds = Bounds{Width: 200, Height: 200}
)
