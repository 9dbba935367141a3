// Package backup archives and restores facegate state.
//
// A bundle is the complete template set plus the full attendance log,
// encoded with a codec and zstd-compressed. Bundles replace the
// copy-the-directory-by-hand backup story with a single atomic
// artifact that can live on disk or in S3-compatible storage.
package backup

import (
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/hupe1980/facegate/codec"
	"github.com/hupe1980/facegate/ledger"
	"github.com/hupe1980/facegate/template"
)

// Bundle is the serialized archive content.
type Bundle struct {
	CreatedAt time.Time           `json:"created_at"`
	Dimension int                 `json:"dimension"`
	Templates []template.Template `json:"templates"`
	Records   []ledger.Record     `json:"records"`
}

// Options contains configuration for bundle encoding.
type Options struct {
	// Codec encodes the bundle before compression. Defaults to
	// codec.Default. Must match between Write and Read.
	Codec codec.Codec

	// Level is the zstd compression level.
	Level zstd.EncoderLevel
}

func buildOptions(optFns []func(o *Options)) Options {
	opts := Options{
		Codec: codec.Default,
		Level: zstd.SpeedDefault,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return opts
}

// Write encodes the bundle and writes it zstd-compressed to w.
func Write(w io.Writer, b *Bundle, optFns ...func(o *Options)) error {
	opts := buildOptions(optFns)

	data, err := opts.Codec.Marshal(b)
	if err != nil {
		return fmt.Errorf("failed to encode bundle: %w", err)
	}

	zw, err := zstd.NewWriter(w, zstd.WithEncoderLevel(opts.Level))
	if err != nil {
		return fmt.Errorf("failed to create compressor: %w", err)
	}
	if _, err := zw.Write(data); err != nil {
		_ = zw.Close()
		return fmt.Errorf("failed to write bundle: %w", err)
	}
	return zw.Close()
}

// Read decompresses and decodes a bundle from r.
func Read(r io.Reader, optFns ...func(o *Options)) (*Bundle, error) {
	opts := buildOptions(optFns)

	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to create decompressor: %w", err)
	}
	defer zr.Close()

	data, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("failed to read bundle: %w", err)
	}

	var b Bundle
	if err := opts.Codec.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("failed to decode bundle: %w", err)
	}

	return &b, nil
}
