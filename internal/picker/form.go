package picker

import (
	"errors"
	"fmt"
	"net/http"
)

// FormField is the multipart field carrying the photo.
const FormField = "photo"

// FromRequest extracts the selected photo from a multipart upload. A request
// without a file yields ErrNoSelection.
func FromRequest(r *http.Request, maxSize int64) (*File, error) {
	if err := r.ParseMultipartForm(maxSize); err != nil {
		if errors.Is(err, http.ErrNotMultipart) {
			return nil, ErrNoSelection
		}
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, fmt.Errorf("%w: limit %d bytes", ErrTooLarge, maxErr.Limit)
		}
		return nil, fmt.Errorf("failed to parse form: %w", err)
	}

	file, header, err := r.FormFile(FormField)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, ErrNoSelection
		}
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}

	contentType := header.Header.Get("Content-Type")
	body := readCloser{Reader: file, Closer: file}
	if contentType == "" || contentType == "application/octet-stream" {
		sniffed, reader, err := sniff(file)
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to read upload: %w", err)
		}
		contentType = sniffed
		body.Reader = reader
	}

	if !IsImageType(contentType) {
		file.Close()
		return nil, fmt.Errorf("%w: got %s", ErrUnsupportedType, contentType)
	}

	return &File{
		Name:        header.Filename,
		ContentType: contentType,
		Size:        header.Size,
		Body:        body,
	}, nil
}
