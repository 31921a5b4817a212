package supabase

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Storage uploads objects to Supabase Storage buckets
type Storage struct {
	client      *Client
	accessToken string
}

// NewStorage creates a storage client acting with accessToken ("" for the anon key)
func (c *Client) NewStorage(accessToken string) *Storage {
	return &Storage{client: c, accessToken: accessToken}
}

// Upload stores body at objectPath in bucket and returns the object path
func (s *Storage) Upload(ctx context.Context, bucket, objectPath string, body io.Reader, contentType string, upsert bool) (string, error) {
	objectPath = strings.TrimLeft(objectPath, "/")
	if bucket == "" || objectPath == "" {
		return "", fmt.Errorf("bucket and object path are required")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.client.objectURL("", bucket, objectPath), body)
	if err != nil {
		return "", fmt.Errorf("build upload request: %w", err)
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Cache-Control", "max-age=3600")
	if upsert {
		req.Header.Set("x-upsert", "true")
	}
	if err := s.client.send(req, s.accessToken, nil); err != nil {
		return "", fmt.Errorf("upload %s/%s: %w", bucket, objectPath, err)
	}
	return objectPath, nil
}

// PublicURL returns the public URL of an object in a public bucket
func (s *Storage) PublicURL(bucket, objectPath string) string {
	return s.client.PublicURL(bucket, objectPath)
}

// PublicURL returns the public URL of an object in a public bucket
func (c *Client) PublicURL(bucket, objectPath string) string {
	return c.objectURL("public/", bucket, objectPath)
}

func (c *Client) objectURL(prefix, bucket, objectPath string) string {
	base := strings.TrimRight(c.baseURL.String(), "/")
	return base + "/storage/v1/object/" + prefix + escapePath(bucket+"/"+strings.TrimLeft(objectPath, "/"))
}

func escapePath(p string) string {
	segments := strings.Split(p, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return strings.Join(segments, "/")
}
