package certificate

import (
	"context"
	"image"
	_ "image/jpeg" // register decoders for background images
	_ "image/png"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
	_ "golang.org/x/image/webp"
)

// maxBackgroundSize caps the bytes read from a background image.
const maxBackgroundSize = 10 << 20

// ImageLoader fetches and decodes a background image.
type ImageLoader interface {
	Load(ctx context.Context, url string) (image.Image, error)
}

// HTTPLoader loads images over HTTP.
type HTTPLoader struct {
	client *http.Client
}

func NewHTTPLoader(timeout time.Duration) *HTTPLoader {
	return &HTTPLoader{client: &http.Client{Timeout: timeout}}
}

func (l *HTTPLoader) Load(ctx context.Context, url string) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "creating request")
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "fetching image")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("fetching image: unexpected status %s", resp.Status)
	}
	img, _, err := image.Decode(io.LimitReader(resp.Body, maxBackgroundSize))
	if err != nil {
		return nil, errors.Wrap(err, "decoding image")
	}
	return img, nil
}
