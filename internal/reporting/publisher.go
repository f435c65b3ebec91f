package reporting

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog"
	"gocloud.dev/blob"
	"gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/memblob" // mem:// driver
	_ "gocloud.dev/blob/s3blob"  // s3:// driver

	"decred-onchain-lab/internal/metrics"
)

// Compression codecs for artifact copies.
const (
	CompressNone = ""
	CompressGzip = "gzip"
	CompressZstd = "zstd"
)

// OpenBucket opens a bucket URL. file:// paths may be relative and are
// created when missing; every other scheme goes through blob.OpenBucket.
func OpenBucket(ctx context.Context, bucketURL string) (*blob.Bucket, error) {
	if dir, ok := strings.CutPrefix(bucketURL, "file://"); ok {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create output dir %s: %w", dir, err)
		}
		b, err := fileblob.OpenBucket(dir, nil)
		if err != nil {
			return nil, fmt.Errorf("open bucket %s: %w", bucketURL, err)
		}
		return b, nil
	}
	b, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, fmt.Errorf("open bucket %s: %w", bucketURL, err)
	}
	return b, nil
}

// Manifest lists every object written by one publish.
type Manifest struct {
	RunID       string          `json:"run_id"`
	GeneratedAt time.Time       `json:"generated_at"`
	Files       []ManifestEntry `json:"files"`
}

// ManifestEntry describes one artifact.
type ManifestEntry struct {
	File        string `json:"file"`
	ContentType string `json:"content_type"`
	Checksum    string `json:"checksum"`
	ByteSize    int64  `json:"byte_size"`
	Compressed  string `json:"compressed,omitempty"`
	CompSize    int64  `json:"compressed_byte_size,omitempty"`
}

// Checksum returns "sha256:<hex>" of data.
func Checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(sum[:])
}

// PublisherOption configures a Publisher.
type PublisherOption func(*Publisher)

// WithPrefix places every object under prefix.
func WithPrefix(prefix string) PublisherOption {
	return func(p *Publisher) { p.prefix = prefix }
}

// WithCompression also writes a gzip (.gz) or zstd (.zst) copy of each artifact.
func WithCompression(codec string) PublisherOption {
	return func(p *Publisher) { p.compress = codec }
}

// WithPublishLogger sets the logger.
func WithPublishLogger(l zerolog.Logger) PublisherOption {
	return func(p *Publisher) { p.log = l }
}

// WithWriteObserver is called with the size of every object written.
func WithWriteObserver(f func(name string, size int)) PublisherOption {
	return func(p *Publisher) { p.observe = f }
}

// Publisher writes artifacts to a blob bucket.
type Publisher struct {
	bucket   *blob.Bucket
	prefix   string
	compress string
	log      zerolog.Logger
	observe  func(name string, size int)
}

// NewPublisher creates a publisher over an open bucket. The caller owns the bucket.
func NewPublisher(bucket *blob.Bucket, opts ...PublisherOption) (*Publisher, error) {
	p := &Publisher{bucket: bucket, log: zerolog.Nop()}
	for _, o := range opts {
		o(p)
	}
	switch p.compress {
	case CompressNone, CompressGzip, CompressZstd:
	default:
		return nil, fmt.Errorf("%w: compression %q", metrics.ErrUnsupportedOption, p.compress)
	}
	return p, nil
}

// Publish writes the report's artifacts followed by manifest.json.
func (p *Publisher) Publish(ctx context.Context, r *Report) (*Manifest, error) {
	arts, err := r.Artifacts()
	if err != nil {
		return nil, err
	}
	m := &Manifest{RunID: r.RunID, GeneratedAt: r.GeneratedAt.UTC()}
	for _, a := range arts {
		entry, err := p.publish(ctx, a)
		if err != nil {
			return nil, err
		}
		m.Files = append(m.Files, entry)
	}

	data, err := RenderJSON(m)
	if err != nil {
		return nil, fmt.Errorf("marshal manifest: %w", err)
	}
	if err := p.write(ctx, ManifestName, ContentJSON, data); err != nil {
		return nil, err
	}
	p.log.Info().Int("files", len(m.Files)).Str("prefix", p.prefix).Msg("artifacts published")
	return m, nil
}

func (p *Publisher) publish(ctx context.Context, a Artifact) (ManifestEntry, error) {
	entry := ManifestEntry{
		File:        a.Name,
		ContentType: a.ContentType,
		Checksum:    Checksum(a.Data),
		ByteSize:    int64(len(a.Data)),
	}
	if err := p.write(ctx, a.Name, a.ContentType, a.Data); err != nil {
		return entry, err
	}
	if p.compress == CompressNone {
		return entry, nil
	}

	packed, ext, err := compress(p.compress, a.Data)
	if err != nil {
		return entry, fmt.Errorf("compress %s: %w", a.Name, err)
	}
	name := a.Name + ext
	if err := p.write(ctx, name, a.ContentType, packed); err != nil {
		return entry, err
	}
	entry.Compressed = name
	entry.CompSize = int64(len(packed))
	return entry, nil
}

func (p *Publisher) write(ctx context.Context, name, contentType string, data []byte) error {
	key := path.Join(p.prefix, name)
	w, err := p.bucket.NewWriter(ctx, key, &blob.WriterOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("create writer for %s: %w", key, err)
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return fmt.Errorf("write %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close writer for %s: %w", key, err)
	}
	p.log.Debug().Str("key", key).Int("bytes", len(data)).Msg("object written")
	if p.observe != nil {
		p.observe(name, len(data))
	}
	return nil
}

func compress(codec string, data []byte) ([]byte, string, error) {
	var buf bytes.Buffer
	switch codec {
	case CompressGzip:
		zw, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
		if err != nil {
			return nil, "", err
		}
		if _, err := zw.Write(data); err != nil {
			return nil, "", err
		}
		if err := zw.Close(); err != nil {
			return nil, "", err
		}
		return buf.Bytes(), ".gz", nil
	case CompressZstd:
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
		if err != nil {
			return nil, "", err
		}
		defer enc.Close()
		return enc.EncodeAll(data, nil), ".zst", nil
	}
	return nil, "", fmt.Errorf("%w: compression %q", metrics.ErrUnsupportedOption, codec)
}
