package picker

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
)

// PathPicker selects files from a base directory. Names that escape the
// directory are rejected.
type PathPicker struct {
	basePath string
}

func NewPathPicker(basePath string) (*PathPicker, error) {
	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve picker directory: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("picker directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("picker directory: %s is not a directory", abs)
	}
	return &PathPicker{basePath: abs}, nil
}

// Pick opens name relative to the base directory. An empty name is treated
// as a dismissed picker.
func (p *PathPicker) Pick(name string) (*File, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNoSelection
	}

	cleanPath := filepath.Clean(name)
	if filepath.IsAbs(cleanPath) {
		rel, err := filepath.Rel(p.basePath, cleanPath)
		if err != nil {
			return nil, fmt.Errorf("invalid path")
		}
		cleanPath = rel
	}
	if cleanPath == ".." || strings.HasPrefix(cleanPath, ".."+string(filepath.Separator)) {
		return nil, fmt.Errorf("invalid path")
	}

	fullPath := filepath.Join(p.basePath, cleanPath)
	f, err := os.Open(fullPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	if info.IsDir() {
		f.Close()
		return nil, fmt.Errorf("%w: %s is a directory", ErrUnsupportedType, name)
	}

	body := readCloser{Reader: f, Closer: f}
	contentType := mime.TypeByExtension(strings.ToLower(filepath.Ext(fullPath)))
	if contentType == "" {
		sniffed, reader, err := sniff(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to read file: %w", err)
		}
		contentType = sniffed
		body.Reader = reader
	}

	if !IsImageType(contentType) {
		f.Close()
		return nil, fmt.Errorf("%w: got %s", ErrUnsupportedType, contentType)
	}

	return &File{
		Name:        filepath.Base(fullPath),
		ContentType: contentType,
		Size:        info.Size(),
		Body:        body,
	}, nil
}
