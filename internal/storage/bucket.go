// Package storage wraps the blob bucket holding lead documents.
package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"
)

// Bucket is the attachment store. Keys follow the
// leads/<timestamp>-<sanitized-filename> convention.
type Bucket struct {
	bucket *blob.Bucket
}

// Open connects to the bucket named by a gocloud URL, e.g.
// file:///var/lib/leads/blobs?create_dir=1.
func Open(ctx context.Context, bucketURL string) (*Bucket, error) {
	bucket, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, fmt.Errorf("open bucket %q: %w", bucketURL, err)
	}
	return &Bucket{bucket: bucket}, nil
}

// Wrap adapts an already-open blob.Bucket (used by tests with memblob).
func Wrap(bucket *blob.Bucket) *Bucket {
	return &Bucket{bucket: bucket}
}

func (b *Bucket) Close() error {
	return b.bucket.Close()
}

// Put writes the blob under key and returns once it is durably stored.
func (b *Bucket) Put(ctx context.Context, key string, r io.Reader, contentType string) error {
	w, err := b.bucket.NewWriter(ctx, key, &blob.WriterOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("open writer for %q: %w", key, err)
	}
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return fmt.Errorf("write %q: %w", key, err)
	}
	return w.Close()
}

// Delete removes the blob under key.
func (b *Bucket) Delete(ctx context.Context, key string) error {
	return b.bucket.Delete(ctx, key)
}

// NewReader opens the blob under key for streaming.
func (b *Bucket) NewReader(ctx context.Context, key string) (io.ReadCloser, error) {
	return b.bucket.NewReader(ctx, key, nil)
}

// BuildKey derives the storage key for an uploaded file.
func BuildKey(filename string, now time.Time) string {
	return fmt.Sprintf("leads/%d-%s", now.UnixMilli(), SanitizeFilename(filename))
}

// SanitizeFilename replaces every character that is not a letter, digit or
// dot with an underscore.
func SanitizeFilename(name string) string {
	var sb strings.Builder
	sb.Grow(len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.':
			sb.WriteRune(r)
		default:
			sb.WriteRune('_')
		}
	}
	return sb.String()
}
