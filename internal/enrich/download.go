package enrich

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/JakeFAU/realtime-news-collector/internal/news"
)

type downloaded struct {
	data        []byte
	contentType string
	ext         string
}

func (e *Engine) headers(accept string) http.Header {
	h := http.Header{}
	h.Set("User-Agent", e.cfg.UserAgent)
	h.Set("Accept", accept)
	return h
}

// download fetches an image and validates its type and size.
func (e *Engine) download(ctx context.Context, imageURL string) (downloaded, error) {
	resp, err := e.deps.Images.Fetch(ctx, news.FetchRequest{
		URL:     imageURL,
		Headers: e.headers("image/avif,image/webp,image/*,*/*;q=0.8"),
	})
	if err != nil {
		return downloaded{}, fmt.Errorf("fetch image: %w", err)
	}
	if resp.StatusCode != 0 && (resp.StatusCode < 200 || resp.StatusCode > 299) {
		return downloaded{}, fmt.Errorf("fetch image: status %d", resp.StatusCode)
	}

	contentType := ""
	if resp.Headers != nil {
		contentType = resp.Headers.Get("Content-Type")
	}
	mediaType := mediaTypeOf(contentType)
	if !strings.HasPrefix(mediaType, "image/") {
		return downloaded{}, fmt.Errorf("unexpected content type %q", contentType)
	}
	if resp.Headers != nil {
		if declared := resp.Headers.Get("Content-Length"); declared != "" {
			if n, err := strconv.ParseInt(declared, 10, 64); err == nil && n > e.cfg.MaxImageBytes {
				return downloaded{}, fmt.Errorf("declared size %d exceeds %d bytes", n, e.cfg.MaxImageBytes)
			}
		}
	}
	if int64(len(resp.Body)) > e.cfg.MaxImageBytes {
		return downloaded{}, fmt.Errorf("image body exceeds %d bytes", e.cfg.MaxImageBytes)
	}
	if len(resp.Body) == 0 {
		return downloaded{}, fmt.Errorf("image body is empty")
	}
	return downloaded{
		data:        resp.Body,
		contentType: mediaType,
		ext:         extensionFor(mediaType, imageURL),
	}, nil
}

func mediaTypeOf(contentType string) string {
	if contentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType, _, _ = strings.Cut(contentType, ";")
	}
	return strings.ToLower(strings.TrimSpace(mediaType))
}

// extensionFor prefers the content type, then the URL path, then .jpg.
func extensionFor(mediaType, imageURL string) string {
	switch {
	case strings.Contains(mediaType, "jpeg"), strings.Contains(mediaType, "jpg"):
		return ".jpg"
	case strings.Contains(mediaType, "png"):
		return ".png"
	case strings.Contains(mediaType, "gif"):
		return ".gif"
	case strings.Contains(mediaType, "webp"):
		return ".webp"
	}
	if u, err := url.Parse(imageURL); err == nil {
		ext := strings.ToLower(path.Ext(u.Path))
		for _, known := range imageExts {
			if ext == known {
				return ext
			}
		}
	}
	return ".jpg"
}
