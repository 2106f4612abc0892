package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/Roohan-gm/shopblizz-backend/internal/domain"
	"github.com/Roohan-gm/shopblizz-backend/internal/platform/config"
	"github.com/Roohan-gm/shopblizz-backend/internal/platform/resilience"
	"github.com/Roohan-gm/shopblizz-backend/internal/services"
)

const defaultMaxUploadBytes = 5 << 20

// ObjectWriter is the subset of bucket operations the store needs.
type ObjectWriter interface {
	Write(ctx context.Context, object, contentType string, body io.Reader) error
	Delete(ctx context.Context, object string) error
}

// GCSStore hosts product images in a Cloud Storage bucket.
type GCSStore struct {
	objects    ObjectWriter
	bucket     string
	prefix     string
	publicHost string
	maxBytes   int64
	newID      func() string
	breaker    *resilience.Breaker[struct{}]
	logger     *zap.Logger
}

var _ services.MediaStore = (*GCSStore)(nil)

// Option customises GCSStore.
type Option func(*GCSStore)

// WithObjectWriter replaces the bucket client, mainly for tests.
func WithObjectWriter(objects ObjectWriter) Option {
	return func(s *GCSStore) {
		if objects != nil {
			s.objects = objects
		}
	}
}

// WithIDGenerator overrides the object id generator.
func WithIDGenerator(gen func() string) Option {
	return func(s *GCSStore) {
		if gen != nil {
			s.newID = gen
		}
	}
}

// WithLogger attaches a logger for breaker transitions and release failures.
func WithLogger(logger *zap.Logger) Option {
	return func(s *GCSStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewGCSStore builds a store over client. client may be nil when WithObjectWriter is supplied.
func NewGCSStore(client *storage.Client, cfg config.StorageConfig, breaker config.BreakerConfig, opts ...Option) (*GCSStore, error) {
	bucket := strings.TrimSpace(cfg.MediaBucket)
	if bucket == "" {
		return nil, errors.New("media: bucket is required")
	}
	maxBytes := int64(cfg.UploadMaxMiB) << 20
	if maxBytes <= 0 {
		maxBytes = defaultMaxUploadBytes
	}
	host := strings.TrimRight(strings.TrimSpace(cfg.PublicHost), "/")
	if host == "" {
		host = "https://storage.googleapis.com"
	}
	store := &GCSStore{
		bucket:     bucket,
		prefix:     cfg.MediaPrefix,
		publicHost: host,
		maxBytes:   maxBytes,
		newID:      func() string { return ulid.Make().String() },
		logger:     zap.NewNop(),
	}
	if client != nil {
		store.objects = bucketWriter{bucket: client.Bucket(bucket)}
	}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	if store.objects == nil {
		return nil, errors.New("media: storage client is required")
	}
	store.breaker = resilience.NewBreaker[struct{}]("media-store", breaker, store.logger)
	return store, nil
}

// Store validates and uploads the image and returns its public URL. The object name is the
// asset id.
func (s *GCSStore) Store(ctx context.Context, upload services.MediaUpload) (domain.MediaAsset, error) {
	if upload.Body == nil {
		return domain.MediaAsset{}, &services.ValidationError{Field: "image", Message: "image is required"}
	}
	if upload.Size > s.maxBytes {
		return domain.MediaAsset{}, &services.ValidationError{Field: "image", Message: fmt.Sprintf("image exceeds %d bytes", s.maxBytes)}
	}
	object, err := ObjectPath(s.prefix, upload.Filename, s.newID(), upload.ContentType)
	if err != nil {
		return domain.MediaAsset{}, &services.ValidationError{Field: "image", Message: err.Error()}
	}

	body := &limitedReader{r: upload.Body, remaining: s.maxBytes}
	var tooLarge bool
	_, err = s.breaker.Execute(func() (struct{}, error) {
		err := s.objects.Write(ctx, object, NormalizeContentType(upload.ContentType), body)
		if errors.Is(err, errTooLarge) {
			tooLarge = true
			return struct{}{}, nil
		}
		return struct{}{}, err
	})
	if tooLarge {
		return domain.MediaAsset{}, &services.ValidationError{Field: "image", Message: fmt.Sprintf("image exceeds %d bytes", s.maxBytes)}
	}
	if err != nil {
		return domain.MediaAsset{}, fmt.Errorf("media: upload %s: %w", object, err)
	}
	return domain.MediaAsset{URL: s.publicURL(object), AssetID: object}, nil
}

// Release deletes the object. A missing object counts as released.
func (s *GCSStore) Release(ctx context.Context, assetID string) error {
	object := strings.TrimSpace(assetID)
	if object == "" {
		return nil
	}
	_, err := s.breaker.Execute(func() (struct{}, error) {
		err := s.objects.Delete(ctx, object)
		if errors.Is(err, storage.ErrObjectNotExist) {
			return struct{}{}, nil
		}
		return struct{}{}, err
	})
	if err != nil {
		return fmt.Errorf("media: delete %s: %w", object, err)
	}
	return nil
}

func (s *GCSStore) publicURL(object string) string {
	segments := strings.Split(object, "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return fmt.Sprintf("%s/%s/%s", s.publicHost, s.bucket, strings.Join(segments, "/"))
}

type bucketWriter struct {
	bucket *storage.BucketHandle
}

func (b bucketWriter) Write(ctx context.Context, object, contentType string, body io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	w := b.bucket.Object(object).If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	w.ContentType = contentType
	w.CacheControl = "public, max-age=86400"
	if _, err := io.Copy(w, body); err != nil {
		cancel()
		_ = w.Close()
		return err
	}
	return w.Close()
}

func (b bucketWriter) Delete(ctx context.Context, object string) error {
	return b.bucket.Object(object).Delete(ctx)
}

var errTooLarge = errors.New("media: upload too large")

type limitedReader struct {
	r         io.Reader
	remaining int64
}

func (l *limitedReader) Read(p []byte) (int, error) {
	if l.remaining < 0 {
		return 0, errTooLarge
	}
	if int64(len(p)) > l.remaining+1 {
		p = p[:l.remaining+1]
	}
	n, err := l.r.Read(p)
	l.remaining -= int64(n)
	if l.remaining < 0 {
		return n, errTooLarge
	}
	return n, err
}
