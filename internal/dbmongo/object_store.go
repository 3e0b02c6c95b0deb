package dbmongo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"

	"revline/internal/common"
)

// Object is a stored attachment opened for reading. Body must be closed.
type Object struct {
	Path        string
	ContentType string
	Size        int64
	UploadedAt  time.Time
	Body        io.ReadCloser
}

// Bucket is the raw blob store ObjectStore writes to.
type Bucket interface {
	Put(ctx context.Context, name, contentType string, r io.Reader) (int64, error)
	Get(ctx context.Context, name string) (*Object, error)
}

// ErrObjectNotFound is returned by Bucket.Get for an unknown name.
var ErrObjectNotFound = errors.New("object not found")

// ObjectStore stores attachments under caller chosen paths and builds their public URLs.
type ObjectStore struct {
	bucket  Bucket
	name    string
	baseURL string
}

func NewObjectStore(bucket Bucket, bucketName, publicBaseURL string) *ObjectStore {
	return &ObjectStore{
		bucket:  bucket,
		name:    bucketName,
		baseURL: strings.TrimRight(publicBaseURL, "/"),
	}
}

func (s *ObjectStore) BucketName() string {
	return s.name
}

// Upload writes r at path and returns the storage path.
func (s *ObjectStore) Upload(ctx context.Context, path, contentType string, r io.Reader) (string, error) {
	if err := ValidatePath(path); err != nil {
		return "", err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	if _, err := s.bucket.Put(ctx, path, contentType, r); err != nil {
		return "", fmt.Errorf("store %s: %w", path, err)
	}
	return path, nil
}

func (s *ObjectStore) Open(ctx context.Context, path string) (*Object, error) {
	if err := ValidatePath(path); err != nil {
		return nil, err
	}

	obj, err := s.bucket.Get(ctx, path)
	if errors.Is(err, ErrObjectNotFound) {
		return nil, common.NotFound("object", path)
	}
	if err != nil {
		return nil, common.Backend("open object", err)
	}
	return obj, nil
}

// PublicURL is {base}/storage/v1/object/public/{bucket}/{path} with every segment escaped.
func (s *ObjectStore) PublicURL(path string) string {
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", s.baseURL, url.PathEscape(s.name), strings.Join(segments, "/"))
}

// ValidatePath rejects empty, absolute and parent-relative object paths.
func ValidatePath(path string) error {
	if path == "" {
		return common.Invalid("object path is required")
	}
	if strings.HasPrefix(path, "/") {
		return common.Invalid("object path %q must be relative", path)
	}
	for _, seg := range strings.Split(path, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return common.Invalid("object path %q has an empty or relative segment", path)
		}
	}
	return nil
}

type gridFSBucket struct {
	bucket *gridfs.Bucket
}

// NewGridFSBucket stores each object as one GridFS file whose filename is the object path.
// Re-uploading a path adds a revision and Get returns the newest one.
func NewGridFSBucket(bucket *gridfs.Bucket) Bucket {
	return &gridFSBucket{bucket: bucket}
}

func (b *gridFSBucket) Put(ctx context.Context, name, contentType string, r io.Reader) (int64, error) {
	metadata := bson.M{
		"content_type": contentType,
		"uploaded_at":  time.Now().UTC(),
	}

	stream, err := b.bucket.OpenUploadStream(name, options.GridFSUpload().SetMetadata(metadata))
	if err != nil {
		return 0, fmt.Errorf("open upload stream: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = stream.SetWriteDeadline(deadline)
	}

	size, err := io.Copy(stream, r)
	if err != nil {
		_ = stream.Abort()
		return 0, fmt.Errorf("copy to gridfs: %w", err)
	}
	if err := stream.Close(); err != nil {
		return 0, fmt.Errorf("finish upload: %w", err)
	}
	return size, nil
}

func (b *gridFSBucket) Get(ctx context.Context, name string) (*Object, error) {
	stream, err := b.bucket.OpenDownloadStreamByName(name)
	if errors.Is(err, gridfs.ErrFileNotFound) {
		return nil, ErrObjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("open download stream: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = stream.SetReadDeadline(deadline)
	}

	file := stream.GetFile()
	obj := &Object{
		Path:        name,
		ContentType: "application/octet-stream",
		Size:        file.Length,
		UploadedAt:  file.UploadDate,
		Body:        stream,
	}
	if file.Metadata != nil {
		if ct, ok := file.Metadata.Lookup("content_type").StringValueOK(); ok && ct != "" {
			obj.ContentType = ct
		}
	}
	return obj, nil
}
