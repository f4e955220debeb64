// Package picker turns user file selections (browser uploads or local paths)
// into image files the capture controller can import.
package picker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
)

var (
	// ErrNoSelection means the user dismissed the picker without choosing.
	ErrNoSelection     = errors.New("no file selected")
	ErrUnsupportedType = errors.New("only image files are allowed")
	ErrTooLarge        = errors.New("file exceeds maximum size")
)

// File is a selected file. Body is read at most once.
type File struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.ReadCloser
}

// IsImageType reports whether contentType is an image/* media type.
func IsImageType(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return strings.HasPrefix(mediaType, "image/")
}

// ReadAll reads the whole body, honouring ctx between reads and refusing
// anything over limit bytes. A limit of zero disables the check.
func (f *File) ReadAll(ctx context.Context, limit int64) ([]byte, error) {
	if f == nil || f.Body == nil {
		return nil, ErrNoSelection
	}
	defer f.Body.Close()

	var r io.Reader = &ctxReader{ctx: ctx, r: f.Body}
	if limit > 0 {
		r = io.LimitReader(r, limit+1)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", f.Name, err)
	}
	if limit > 0 && int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: %s", ErrTooLarge, f.Name)
	}
	return data, nil
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

// sniff fills in a missing content type from the first bytes of body and
// returns a reader that still yields the complete content.
func sniff(body io.Reader) (string, io.Reader, error) {
	head := make([]byte, 512)
	n, err := io.ReadFull(body, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", nil, err
	}
	head = head[:n]
	return http.DetectContentType(head), io.MultiReader(bytes.NewReader(head), body), nil
}

type readCloser struct {
	io.Reader
	io.Closer
}
