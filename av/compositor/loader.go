package compositor

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	// registered decoders
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

// DefaultMaxImageBytes bounds a single fetched or embedded resource.
const DefaultMaxImageBytes = 32 << 20

// Loader resolves an image reference to a decoded image.
type Loader interface {
	Load(ctx context.Context, ref string) (image.Image, error)
}

// ResourceLoader understands data URLs, http(s) URLs, file:// URLs and
// plain filesystem paths. PNG, JPEG, GIF and WebP are decoded.
type ResourceLoader struct {
	Client   *http.Client
	MaxBytes int64
}

// NewResourceLoader creates a loader with a bounded HTTP client.
func NewResourceLoader() *ResourceLoader {
	return &ResourceLoader{
		Client:   &http.Client{Timeout: 10 * time.Second},
		MaxBytes: DefaultMaxImageBytes,
	}
}

// Load fetches and decodes ref.
func (l *ResourceLoader) Load(ctx context.Context, ref string) (image.Image, error) {
	data, err := l.read(ctx, ref)
	if err != nil {
		return nil, err
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", describeRef(ref), err)
	}

	return img, nil
}

func (l *ResourceLoader) read(ctx context.Context, ref string) ([]byte, error) {
	switch {
	case ref == "":
		return nil, fmt.Errorf("%w: empty reference", ErrUnsupportedRef)
	case strings.HasPrefix(ref, "data:"):
		return decodeDataURL(ref)
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		return l.fetch(ctx, ref)
	case strings.HasPrefix(ref, "file://"):
		u, err := url.Parse(ref)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnsupportedRef, err)
		}
		return l.readFile(u.Path)
	case strings.Contains(ref, "://"):
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedRef, describeRef(ref))
	default:
		return l.readFile(ref)
	}
}

func (l *ResourceLoader) limit() int64 {
	if l.MaxBytes <= 0 {
		return DefaultMaxImageBytes
	}
	return l.MaxBytes
}

func (l *ResourceLoader) readFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return readLimited(f, l.limit())
}

func (l *ResourceLoader) fetch(ctx context.Context, ref string) ([]byte, error) {
	client := l.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedRef, err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", ref, resp.StatusCode)
	}

	return readLimited(resp.Body, l.limit())
}

func readLimited(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("resource exceeds %d bytes", limit)
	}
	return data, nil
}

// decodeDataURL handles data:[<mediatype>][;base64],<data>.
func decodeDataURL(ref string) ([]byte, error) {
	header, payload, ok := strings.Cut(strings.TrimPrefix(ref, "data:"), ",")
	if !ok {
		return nil, fmt.Errorf("%w: data URL without payload", ErrUnsupportedRef)
	}

	if strings.HasSuffix(header, ";base64") {
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, fmt.Errorf("data URL: %w", err)
		}
		return data, nil
	}

	data, err := url.PathUnescape(payload)
	if err != nil {
		return nil, fmt.Errorf("data URL: %w", err)
	}
	return []byte(data), nil
}

// describeRef shortens data URLs for log lines.
func describeRef(ref string) string {
	if strings.HasPrefix(ref, "data:") && len(ref) > 48 {
		return ref[:48] + "..."
	}
	return ref
}
