package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

const fileScheme = "file://"

// StagingArea keeps client-picked images on local disk until the profile
// save that references them has uploaded them. References handed out are
// file:// URIs; only references that point inside the area can be opened.
type StagingArea struct {
	dir      string
	maxBytes int64
}

func NewStagingArea(root string, maxBytes int64) (*StagingArea, error) {
	dir := filepath.Join(root, "avatar-staging")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create staging dir: %w", err)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve staging dir: %w", err)
	}
	return &StagingArea{dir: abs, maxBytes: maxBytes}, nil
}

// Stage copies r into the area and returns its reference. Content that is
// empty, too large, or not an image is rejected and nothing is kept.
func (s *StagingArea) Stage(r io.Reader) (string, error) {
	f, err := os.CreateTemp(s.dir, "avatar-*")
	if err != nil {
		return "", fmt.Errorf("failed to create staging file: %w", err)
	}

	keep := false
	defer func() {
		f.Close()
		if !keep {
			os.Remove(f.Name())
		}
	}()

	n, err := io.Copy(f, io.LimitReader(r, s.maxBytes+1))
	if err != nil {
		return "", fmt.Errorf("failed to write staging file: %w", err)
	}
	if n == 0 {
		return "", ErrEmptyAsset
	}
	if n > s.maxBytes {
		return "", ErrTooLarge
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	mt, err := mimetype.DetectReader(f)
	if err != nil {
		return "", fmt.Errorf("failed to detect content type: %w", err)
	}
	if !strings.HasPrefix(mt.String(), "image/") {
		return "", ErrNotImage
	}

	keep = true
	return fileScheme + f.Name(), nil
}

// Open resolves a reference returned by Stage.
func (s *StagingArea) Open(_ context.Context, ref string) (*Asset, error) {
	path, err := s.resolve(ref)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open staged asset: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	mt, err := mimetype.DetectReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to detect content type: %w", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return nil, err
	}

	return &Asset{Body: f, Size: info.Size(), ContentType: mt.String()}, nil
}

// Discard removes a staged asset. Unknown references are ignored.
func (s *StagingArea) Discard(ref string) error {
	path, err := s.resolve(ref)
	if err != nil {
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (s *StagingArea) resolve(ref string) (string, error) {
	if !strings.HasPrefix(ref, fileScheme) {
		return "", ErrInvalidRef
	}
	path := filepath.Clean(strings.TrimPrefix(ref, fileScheme))
	rel, err := filepath.Rel(s.dir, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") || filepath.IsAbs(rel) {
		return "", ErrInvalidRef
	}
	return path, nil
}
