package reader

import (
	"context"
	"errors"
	"fmt"
	"net/url"
)

type (
	// Reader retrieves the content found at a URL
	Reader interface {
		ReadURL(ctx context.Context, url string) ([]byte, error)
	}

	// SchemeReader dispatches reads to the Reader registered for the URL's
	// scheme
	SchemeReader struct {
		readers map[string]Reader
	}
)

var (
	ErrInvalidURL        = errors.New("invalid URL")
	ErrUnsupportedScheme = errors.New("unsupported URL scheme")
)

var _ Reader = (*SchemeReader)(nil)

// NewSchemeReader creates a reader with no schemes registered
func NewSchemeReader() *SchemeReader {
	return &SchemeReader{
		readers: map[string]Reader{},
	}
}

// Register routes the given schemes to r, replacing earlier registrations
func (s *SchemeReader) Register(r Reader, schemes ...string) *SchemeReader {
	for _, scheme := range schemes {
		s.readers[scheme] = r
	}
	return s
}

// ReadURL reads rawURL with the reader registered for its scheme
func (s *SchemeReader) ReadURL(
	ctx context.Context, rawURL string,
) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}
	r, ok := s.readers[u.Scheme]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedScheme, u.Scheme)
	}
	return r.ReadURL(ctx, rawURL)
}
