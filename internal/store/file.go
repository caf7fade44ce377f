package store

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

// File keeps one file per key under a directory. Writes go to a temporary
// file that is synced and renamed over the target.
type File struct {
	dir     string
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewFile creates a File store rooted at dir.
// If dir is empty, it defaults to ~/.cache/prayer-engine/.
// With compress set, values are stored zstd-compressed.
func NewFile(dir string, compress bool) (*File, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("cannot determine home directory: %w", err)
		}
		dir = filepath.Join(home, ".cache", "prayer-engine")
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create store directory %s: %w", dir, err)
	}

	f := &File{dir: dir}
	if compress {
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
		}
		dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
		}
		f.encoder, f.decoder = enc, dec
	}
	return f, nil
}

// Dir returns the directory the store writes to.
func (f *File) Dir() string { return f.dir }

// path hashes the key so arbitrary key strings map to safe file names.
func (f *File) path(key string) string {
	h := sha256.Sum256([]byte(key))
	ext := ".json"
	if f.encoder != nil {
		ext = ".json.zst"
	}
	return filepath.Join(f.dir, fmt.Sprintf("%x%s", h[:8], ext))
}

func (f *File) Get(_ context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(f.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	if f.decoder != nil {
		data, err = f.decoder.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("decompress %s: %w", key, err)
		}
	}
	return data, nil
}

func (f *File) Put(_ context.Context, key string, value []byte) error {
	data := value
	if f.encoder != nil {
		data = f.encoder.EncodeAll(value, make([]byte, 0, len(value)/2))
	}

	tmp, err := os.CreateTemp(f.dir, ".put-*")
	if err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	tmpName := tmp.Name()

	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", key, err)
	}
	if err = tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync %s: %w", key, err)
	}
	if err = tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", key, err)
	}

	if err := os.Rename(tmpName, f.path(key)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename %s: %w", key, err)
	}
	return nil
}

func (f *File) Delete(_ context.Context, key string) error {
	err := os.Remove(f.path(key))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

func (f *File) Close() error {
	if f.encoder != nil {
		f.encoder.Close()
		f.decoder.Close()
	}
	return nil
}
