package storage

import (
	"fmt"
	"net/url"
	"strings"

	"media-studio/internal/config"
)

// Resolver turns stored URIs (gs://, s3://, file://) into browser-usable URLs.
type Resolver struct {
	publicBaseURL string
	s3Region      string
	s3Endpoint    string
	s3PathStyle   bool
}

func NewResolver(cfg config.Config) Resolver {
	return Resolver{
		publicBaseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
		s3Region:      cfg.S3Region,
		s3Endpoint:    strings.TrimRight(cfg.S3Endpoint, "/"),
		s3PathStyle:   cfg.S3PathStyle,
	}
}

// Resolve maps uri to a URL. http(s) URLs pass through unchanged.
func (r Resolver) Resolve(uri string) (string, error) {
	uri = strings.TrimSpace(uri)
	if uri == "" {
		return "", fmt.Errorf("resolve: empty uri")
	}
	if strings.HasPrefix(uri, "http://") || strings.HasPrefix(uri, "https://") {
		return uri, nil
	}
	scheme, bucket, key, err := ParseURI(uri)
	if err != nil {
		return "", fmt.Errorf("resolve: %w", err)
	}
	switch scheme {
	case "gs":
		return "https://storage.googleapis.com/" + bucket + "/" + escapeKey(key), nil
	case "s3":
		switch {
		case r.s3Endpoint != "" && r.s3PathStyle:
			return r.s3Endpoint + "/" + bucket + "/" + escapeKey(key), nil
		case r.s3Endpoint != "":
			u, err := url.Parse(r.s3Endpoint)
			if err != nil {
				return "", fmt.Errorf("resolve: parse endpoint: %w", err)
			}
			return u.Scheme + "://" + bucket + "." + u.Host + "/" + escapeKey(key), nil
		default:
			return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", bucket, r.s3Region, escapeKey(key)), nil
		}
	case "file":
		if r.publicBaseURL == "" {
			return "", fmt.Errorf("resolve %s: no public base url for local files", uri)
		}
		return r.publicBaseURL + "/files/" + escapeKey(key), nil
	}
	return "", fmt.Errorf("resolve %s: unsupported scheme %q", uri, scheme)
}

func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
