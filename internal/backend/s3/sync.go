package s3

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"golang.org/x/sync/errgroup"
)

const defaultWorkers = 8

// Client is the slice of the S3 API the syncer needs. *awss3.Client
// satisfies it.
type Client interface {
	HeadObject(ctx context.Context, in *awss3.HeadObjectInput, opts ...func(*awss3.Options)) (*awss3.HeadObjectOutput, error)
	GetObject(ctx context.Context, in *awss3.GetObjectInput, opts ...func(*awss3.Options)) (*awss3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *awss3.PutObjectInput, opts ...func(*awss3.Options)) (*awss3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *awss3.DeleteObjectInput, opts ...func(*awss3.Options)) (*awss3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *awss3.ListObjectsV2Input, opts ...func(*awss3.Options)) (*awss3.ListObjectsV2Output, error)
}

// Syncer mirrors directories between local disk and a bucket prefix.
// Files are uploaded and downloaded with SHA-256 checksums so unchanged
// files are skipped on both directions.
type Syncer struct {
	client  Client
	logger  *slog.Logger
	workers int
}

// SyncerOption configures a Syncer.
type SyncerOption func(*Syncer)

// WithSyncLogger sets the logger.
func WithSyncLogger(logger *slog.Logger) SyncerOption {
	return func(s *Syncer) { s.logger = logger }
}

// WithWorkers bounds concurrent transfers.
func WithWorkers(n int) SyncerOption {
	return func(s *Syncer) {
		if n > 0 {
			s.workers = n
		}
	}
}

// NewSyncer wraps an S3 client.
func NewSyncer(client Client, opts ...SyncerOption) *Syncer {
	s := &Syncer{
		client:  client,
		logger:  slog.Default(),
		workers: defaultWorkers,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func checksumSHA256(b []byte) string {
	sum := sha256.Sum256(b)
	return base64.StdEncoding.EncodeToString(sum[:])
}

// remoteChecksum returns the stored SHA-256 for key, or "" if the
// object does not exist or carries no checksum.
func (s *Syncer) remoteChecksum(ctx context.Context, remote Path) (string, error) {
	out, err := s.client.HeadObject(ctx, &awss3.HeadObjectInput{
		Bucket:       &remote.Bucket,
		Key:          strPtr(remote.Key()),
		ChecksumMode: types.ChecksumModeEnabled,
	})
	if err != nil {
		var nf *types.NotFound
		if errors.As(err, &nf) {
			return "", nil
		}
		return "", fmt.Errorf("head %s: %w", remote, err)
	}
	if out.ChecksumSHA256 == nil {
		return "", nil
	}
	return *out.ChecksumSHA256, nil
}

// uploadFile pushes one file, skipping when the remote checksum
// already matches.
func (s *Syncer) uploadFile(ctx context.Context, local string, remote Path) error {
	b, err := os.ReadFile(local)
	if err != nil {
		return fmt.Errorf("read %s: %w", local, err)
	}
	localSum := checksumSHA256(b)

	remoteSum, err := s.remoteChecksum(ctx, remote)
	if err != nil {
		return err
	}
	if remoteSum == localSum {
		return nil
	}

	_, err = s.client.PutObject(ctx, &awss3.PutObjectInput{
		Bucket:            &remote.Bucket,
		Key:               strPtr(remote.Key()),
		Body:              bytes.NewReader(b),
		ChecksumAlgorithm: types.ChecksumAlgorithmSha256,
		ChecksumSHA256:    &localSum,
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", remote, err)
	}
	s.logger.Debug("uploaded file", "local", local, "remote", remote.String(), "bytes", len(b))
	return nil
}

// downloadFile pulls one object, skipping when the local file already
// matches its checksum.
func (s *Syncer) downloadFile(ctx context.Context, remote Path, local string) error {
	if b, err := os.ReadFile(local); err == nil {
		remoteSum, err := s.remoteChecksum(ctx, remote)
		if err != nil {
			return err
		}
		if remoteSum != "" && remoteSum == checksumSHA256(b) {
			return nil
		}
	}

	out, err := s.client.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: &remote.Bucket,
		Key:    strPtr(remote.Key()),
	})
	if err != nil {
		return fmt.Errorf("get %s: %w", remote, err)
	}
	defer out.Body.Close()

	if err := os.MkdirAll(filepath.Dir(local), 0o755); err != nil {
		return err
	}
	f, err := os.Create(local)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, out.Body); err != nil {
		f.Close()
		return fmt.Errorf("download %s: %w", remote, err)
	}
	return f.Close()
}

// listRemote returns every object key under the prefix, following
// continuation tokens.
func (s *Syncer) listRemote(ctx context.Context, prefix Path) ([]string, error) {
	var keys []string
	in := &awss3.ListObjectsV2Input{
		Bucket: &prefix.Bucket,
		Prefix: strPtr(prefix.Key() + "/"),
	}
	for {
		out, err := s.client.ListObjectsV2(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", prefix, err)
		}
		for _, obj := range out.Contents {
			if obj.Key != nil {
				keys = append(keys, *obj.Key)
			}
		}
		if out.IsTruncated == nil || !*out.IsTruncated {
			return keys, nil
		}
		in.ContinuationToken = out.NextContinuationToken
	}
}

// SyncUp mirrors a local directory to a remote prefix. Remote objects
// with no local counterpart are deleted.
func (s *Syncer) SyncUp(ctx context.Context, localDir string, remote Path) error {
	type pair struct {
		local string
		size  int64
	}
	var files []pair
	err := filepath.WalkDir(localDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		files = append(files, pair{local: path, size: info.Size()})
		return nil
	})
	if err != nil {
		return fmt.Errorf("walk %s: %w", localDir, err)
	}
	// Biggest first so the slowest uploads start early.
	sort.Slice(files, func(i, j int) bool { return files[i].size > files[j].size })

	wanted := make(map[string]bool, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for _, f := range files {
		rel, err := filepath.Rel(localDir, f.local)
		if err != nil {
			return err
		}
		key := remote.Key() + "/" + filepath.ToSlash(rel)
		wanted[key] = true

		target, err := NewPath(remote.Bucket, key)
		if err != nil {
			return err
		}
		local := f.local
		g.Go(func() error { return s.uploadFile(gctx, local, target) })
	}
	if err := g.Wait(); err != nil {
		return err
	}

	existing, err := s.listRemote(ctx, remote)
	if err != nil {
		return err
	}
	for _, key := range existing {
		if wanted[key] {
			continue
		}
		_, err := s.client.DeleteObject(ctx, &awss3.DeleteObjectInput{
			Bucket: &remote.Bucket,
			Key:    strPtr(key),
		})
		if err != nil {
			return fmt.Errorf("delete s3://%s/%s: %w", remote.Bucket, key, err)
		}
		s.logger.Debug("deleted stale object", "bucket", remote.Bucket, "key", key)
	}

	s.logger.Info("synced local to remote", "dir", localDir, "remote", remote.String(), "files", len(files))
	return nil
}

// SyncDown mirrors a remote prefix into a local directory. Local files
// with no remote counterpart are removed.
func (s *Syncer) SyncDown(ctx context.Context, remote Path, localDir string) error {
	keys, err := s.listRemote(ctx, remote)
	if err != nil {
		return err
	}

	prefix := remote.Key() + "/"
	wanted := make(map[string]bool, len(keys))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for _, key := range keys {
		rel := strings.TrimPrefix(key, prefix)
		local := filepath.Join(localDir, filepath.FromSlash(rel))
		wanted[local] = true

		source, err := NewPath(remote.Bucket, key)
		if err != nil {
			return err
		}
		g.Go(func() error { return s.downloadFile(gctx, source, local) })
	}
	if err := g.Wait(); err != nil {
		return err
	}

	err = filepath.WalkDir(localDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		if !wanted[path] {
			if err := os.Remove(path); err != nil {
				return err
			}
			s.logger.Debug("removed stale file", "path", path)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("prune %s: %w", localDir, err)
	}

	s.logger.Info("synced remote to local", "remote", remote.String(), "dir", localDir, "objects", len(keys))
	return nil
}

func strPtr(s string) *string { return &s }
