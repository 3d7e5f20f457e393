package thirdparty

import (
	"bytes"
	"context"
	"io"
	"net/url"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docstore/internal/datastore"
)

var modified = time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

// fakeBucket serves one bucket from a map. Listings are never truncated and
// multipart uploads are not implemented.
type fakeBucket struct {
	S3SessionAPI

	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeBucket() *fakeBucket {
	return &fakeBucket{objects: make(map[string][]byte)}
}

func (f *fakeBucket) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeBucket) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeBucket) HeadObject(ctx context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{ContentLength: aws.Int64(int64(len(data))), LastModified: aws.Time(modified)}, nil
}

func (f *fakeBucket) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeBucket) DeleteObjects(ctx context.Context, in *s3.DeleteObjectsInput, _ ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, obj := range in.Delete.Objects {
		delete(f.objects, aws.ToString(obj.Key))
	}
	return &s3.DeleteObjectsOutput{}, nil
}

func (f *fakeBucket) CopyObject(ctx context.Context, in *s3.CopyObjectInput, _ ...func(*s3.Options)) (*s3.CopyObjectOutput, error) {
	source, err := url.PathUnescape(aws.ToString(in.CopySource))
	if err != nil {
		return nil, err
	}
	key := strings.TrimPrefix(source, aws.ToString(in.Bucket)+"/")

	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[key]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	f.objects[aws.ToString(in.Key)] = bytes.Clone(data)
	return &s3.CopyObjectOutput{}, nil
}

func (f *fakeBucket) ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	prefix := aws.ToString(in.Prefix)
	delim := aws.ToString(in.Delimiter)
	limit := int(aws.ToInt32(in.MaxKeys))

	keys := make([]string, 0, len(f.objects))
	for k := range f.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	out := &s3.ListObjectsV2Output{}
	seen := make(map[string]bool)
	for _, k := range keys {
		if limit > 0 && len(out.Contents)+len(out.CommonPrefixes) >= limit {
			break
		}
		rest := strings.TrimPrefix(k, prefix)
		if delim != "" {
			if i := strings.Index(rest, delim); i >= 0 {
				cp := prefix + rest[:i+1]
				if !seen[cp] {
					seen[cp] = true
					out.CommonPrefixes = append(out.CommonPrefixes, types.CommonPrefix{Prefix: aws.String(cp)})
				}
				continue
			}
		}
		out.Contents = append(out.Contents, types.Object{
			Key:          aws.String(k),
			Size:         aws.Int64(int64(len(f.objects[k]))),
			LastModified: aws.Time(modified),
		})
	}
	out.KeyCount = aws.Int32(int32(len(out.Contents) + len(out.CommonPrefixes)))
	return out, nil
}

func (f *fakeBucket) has(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.objects[key]
	return ok
}

func TestS3Properties(t *testing.T) {
	info := &ProviderInfo{
		ID:       7,
		Provider: S3,
		URL:      "s3://docs/team/a?region=eu-west-1&endpoint=http://localhost:9000&pathstyle=true",
		UserName: "AK",
		Password: "SK",
	}
	props, err := s3Properties(info)
	require.NoError(t, err)

	o, err := datastore.DecodeS3Options(props)
	require.NoError(t, err)
	assert.Equal(t, "docs", o.Bucket)
	assert.Equal(t, "team/a", o.KeyPrefix)
	assert.Equal(t, "eu-west-1", o.Region)
	assert.Equal(t, "http://localhost:9000", o.Endpoint)
	assert.True(t, o.ForcePathStyle)
	assert.Equal(t, "AK", o.AccessKeyID)
	assert.Equal(t, "SK", o.SecretAccessKey)

	for _, bad := range []string{"", "https://docs/x", "s3:///nobucket", "::"} {
		_, err := s3Properties(&ProviderInfo{URL: bad})
		assert.True(t, errors.Is(err, errors.NotValid), "s3Properties(%q) error = %v", bad, err)
	}
}

func TestS3Session(t *testing.T) {
	ctx := context.Background()
	bucket := newFakeBucket()
	s := NewS3Session(bucket, datastore.S3Options{Bucket: "docs", KeyPrefix: "/links/7/"})

	root, err := s.Stat(ctx, "")
	require.NoError(t, err)
	assert.True(t, root.IsFolder)

	docs, err := s.CreateFolder(ctx, "", "Docs")
	require.NoError(t, err)
	assert.Equal(t, "Docs", docs.Path)
	assert.True(t, bucket.has("links/7/Docs/"))

	_, err = s.CreateFolder(ctx, "", "Docs")
	assert.True(t, errors.Is(err, errors.AlreadyExists), "error = %v", err)

	file, err := s.Upload(ctx, "Docs", "a.txt", strings.NewReader("hello"), 5)
	require.NoError(t, err)
	assert.Equal(t, "Docs/a.txt", file.Path)
	assert.Equal(t, int64(5), file.Size)
	assert.Equal(t, modified, file.Modified)

	folder, err := s.Stat(ctx, "Docs")
	require.NoError(t, err)
	assert.True(t, folder.IsFolder)

	top, err := s.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, "Docs", top[0].Path)
	assert.True(t, top[0].IsFolder)

	inDocs, err := s.List(ctx, "Docs")
	require.NoError(t, err)
	require.Len(t, inDocs, 1, "the folder marker is not listed")
	assert.Equal(t, "a.txt", inDocs[0].Name)
	assert.Equal(t, int64(5), inDocs[0].Size)

	_, err = s.List(ctx, "missing")
	assert.True(t, errors.Is(err, errors.NotFound), "error = %v", err)

	copied, err := s.Copy(ctx, "Docs", "", "Copy")
	require.NoError(t, err)
	assert.True(t, copied.IsFolder)
	r, err := s.Download(ctx, "Copy/a.txt")
	require.NoError(t, err)
	data, _ := io.ReadAll(r)
	r.Close()
	assert.Equal(t, "hello", string(data))

	_, err = s.Copy(ctx, "Docs", "Docs", "Inner")
	assert.True(t, errors.Is(err, errors.NotValid), "copy into itself: %v", err)

	moved, err := s.Move(ctx, "Copy/a.txt", "", "b.txt")
	require.NoError(t, err)
	assert.Equal(t, "b.txt", moved.Path)
	_, err = s.Stat(ctx, "Copy/a.txt")
	assert.True(t, errors.Is(err, errors.NotFound))

	_, err = s.Upload(ctx, "", "c.txt", strings.NewReader("abc"), 5)
	assert.True(t, errors.Is(err, errors.NotValid), "size mismatch: %v", err)
	assert.False(t, bucket.has("links/7/c.txt"))

	require.NoError(t, s.Delete(ctx, "Docs"))
	_, err = s.Stat(ctx, "Docs")
	assert.True(t, errors.Is(err, errors.NotFound))
	assert.False(t, bucket.has("links/7/Docs/a.txt"))

	assert.True(t, errors.Is(s.Delete(ctx, ""), errors.NotValid))
	_, err = s.Download(ctx, "nothing")
	assert.True(t, errors.Is(err, errors.NotFound))
}
