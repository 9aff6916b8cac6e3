package worker

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"time"

	"github.com/disintegration/imaging"

	"media-studio/internal/config"
	"media-studio/internal/storage"
)

// Thumbnailer renders a small JPEG preview of a job's source image.
type Thumbnailer struct {
	store      storage.Store
	resolver   storage.Resolver
	httpClient *http.Client
	width      int
	maxBytes   int64
}

func NewThumbnailer(st storage.Store, resolver storage.Resolver, cfg config.Config) *Thumbnailer {
	width := cfg.ThumbnailWidth
	if width <= 0 {
		width = 320
	}
	maxBytes := cfg.AssetMaxBytes
	if maxBytes <= 0 {
		maxBytes = 25 * 1024 * 1024
	}
	return &Thumbnailer{
		store:      st,
		resolver:   resolver,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		width:      width,
		maxBytes:   maxBytes,
	}
}

// ThumbnailKey is where the preview of jobID is stored.
func ThumbnailKey(jobID string) string {
	return "thumbnails/" + jobID + ".jpg"
}

// Render fetches sourceURI, scales it to the configured width and stores it
// under ThumbnailKey(jobID).
func (t *Thumbnailer) Render(ctx context.Context, jobID, sourceURI string) (storage.Object, error) {
	data, err := t.fetch(ctx, sourceURI)
	if err != nil {
		return storage.Object{}, err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return storage.Object{}, fmt.Errorf("decode image: %w", err)
	}
	if img.Bounds().Dx() > t.width {
		img = imaging.Resize(img, t.width, 0, imaging.Lanczos)
	}

	buf := &bytes.Buffer{}
	if err := imaging.Encode(buf, img, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		return storage.Object{}, fmt.Errorf("encode thumbnail: %w", err)
	}
	obj, err := t.store.Put(ctx, ThumbnailKey(jobID), buf.Bytes(), "image/jpeg")
	if err != nil {
		return storage.Object{}, fmt.Errorf("upload thumbnail: %w", err)
	}
	return obj, nil
}

// fetch reads objects in our own store directly and downloads anything else
// through its public URL.
func (t *Thumbnailer) fetch(ctx context.Context, uri string) ([]byte, error) {
	if key, ok := t.store.Owns(uri); ok {
		body, _, err := t.store.Get(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("read source: %w", err)
		}
		return body, nil
	}
	url, err := t.resolver.Resolve(uri)
	if err != nil {
		return nil, err
	}
	return t.download(ctx, url)
}

func (t *Thumbnailer) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("download image: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, t.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	if int64(len(body)) > t.maxBytes {
		return nil, fmt.Errorf("image too large (>%d bytes)", t.maxBytes)
	}
	return body, nil
}
