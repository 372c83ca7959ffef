// Package blobstore implements engine.BlobStore against S3, the cold
// object store keyed by content hash (sync-algorithm.md §4.5). Object
// versioning on the bucket provides the undelete semantics the protocol
// depends on: Delete issues a delete marker rather than a hard delete, and
// Undelete removes the most recent delete marker to resurrect the prior
// version.
package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/tonimelisma/coldbackup/internal/engine"
)

// S3Store is an S3-backed engine.BlobStore. The target bucket must have
// versioning enabled; S3Store does not enable it itself.
type S3Store struct {
	client *s3.Client
	bucket string
	logger *slog.Logger
}

var _ engine.BlobStore = (*S3Store)(nil)

// NewS3Store wires an S3Store against an already-configured S3 client.
func NewS3Store(client *s3.Client, bucket string, logger *slog.Logger) *S3Store {
	if logger == nil {
		logger = slog.Default()
	}

	return &S3Store{client: client, bucket: bucket, logger: logger}
}

// Put uploads size bytes from r under key hash.
func (s *S3Store) Put(ctx context.Context, hash string, r io.Reader, size int64) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(hash),
		Body:          r,
		ContentLength: aws.Int64(size),
	})
	if err != nil {
		return wrapErr("put", hash, err)
	}

	return nil
}

// Get streams the current (non-deleted) version of hash's object. The
// caller must close the returned reader.
func (s *S3Store) Get(ctx context.Context, hash string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(hash),
	})
	if err != nil {
		return nil, wrapErr("get", hash, err)
	}

	return out.Body, nil
}

// Delete issues an S3 delete marker for hash, preserving prior versions.
// No version is ever hard-deleted here, including when the Reaper calls
// Delete; pruning non-current versions is left to the bucket's lifecycle
// policy.
func (s *S3Store) Delete(ctx context.Context, hash string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(hash),
	})
	if err != nil {
		var nf *types.NoSuchKey
		if errors.As(err, &nf) {
			return engine.ErrNotFound
		}

		return wrapErr("delete", hash, err)
	}

	return nil
}

// Undelete removes the most recent delete marker for hash, restoring the
// version beneath it (sync-algorithm.md §4.6 step 2.a: reuse the blob
// within the retention window instead of re-uploading).
func (s *S3Store) Undelete(ctx context.Context, hash string) error {
	versions, err := s.client.ListObjectVersions(ctx, &s3.ListObjectVersionsInput{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(hash),
	})
	if err != nil {
		return wrapErr("list_versions", hash, err)
	}

	var marker *types.DeleteMarkerEntry

	for i := range versions.DeleteMarkers {
		dm := versions.DeleteMarkers[i]
		if aws.ToString(dm.Key) != hash || !aws.ToBool(dm.IsLatest) {
			continue
		}

		marker = &dm

		break
	}

	if marker == nil {
		return engine.ErrNotFound
	}

	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket:    aws.String(s.bucket),
		Key:       aws.String(hash),
		VersionId: marker.VersionId,
	})
	if err != nil {
		return wrapErr("undelete", hash, err)
	}

	return nil
}

// Exists reports whether hash currently resolves to a readable (non
// delete-marked) object.
func (s *S3Store) Exists(ctx context.Context, hash string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(hash),
	})
	if err == nil {
		return true, nil
	}

	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return false, nil
	}

	return false, wrapErr("head", hash, err)
}

func wrapErr(op, hash string, err error) error {
	if isTransient(err) {
		return fmt.Errorf("blobstore: %s(%s): %w: %w", op, hash, engine.ErrTransientRemote, err)
	}

	return fmt.Errorf("blobstore: %s(%s): %w: %w", op, hash, engine.ErrPermanentRemote, err)
}

// isTransient classifies throttling and connectivity failures as retryable,
// mirroring sync-algorithm.md §7's "network/API throttling" kind.
func isTransient(err error) bool {
	var apiErr interface{ ErrorCode() string }
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "RequestTimeout", "SlowDown", "ServiceUnavailable", "InternalError", "ThrottlingException":
			return true
		}
	}

	return false
}
