package thirdparty

import (
	"bytes"
	"context"
	stderrors "errors"
	"io"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/juju/errors"

	"docstore/internal/datastore"
)

// maxDeleteBatch is the object limit of one DeleteObjects call.
const maxDeleteBatch = 1000

// S3SessionAPI is the subset of the S3 client a session calls.
type S3SessionAPI interface {
	datastore.S3API
	s3.ListObjectsV2APIClient
	CopyObject(ctx context.Context, params *s3.CopyObjectInput, optFns ...func(*s3.Options)) (*s3.CopyObjectOutput, error)
	DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
}

// S3Session keeps a link's tree under a key prefix of one bucket. Folders
// are zero-length marker objects whose key ends with '/'; a folder also
// exists implicitly while any key lies below it.
type S3Session struct {
	client   S3SessionAPI
	uploader *manager.Uploader
	bucket   string
	prefix   string
}

var _ Session = (*S3Session)(nil)

// OpenS3Session connects to the bucket named by the link URL
// "s3://bucket[/prefix]?region=<r>[&endpoint=<url>][&pathstyle=true]".
// UserName and Password are the access key pair.
func OpenS3Session(ctx context.Context, info *ProviderInfo) (Session, error) {
	props, err := s3Properties(info)
	if err != nil {
		return nil, err
	}
	o, err := datastore.DecodeS3Options(props)
	if err != nil {
		return nil, err
	}
	client, err := datastore.NewS3Client(ctx, o)
	if err != nil {
		return nil, err
	}
	return NewS3Session(client, o), nil
}

// NewS3Session wraps an existing client.
func NewS3Session(client S3SessionAPI, o datastore.S3Options) *S3Session {
	return &S3Session{
		client: client,
		uploader: manager.NewUploader(client, func(u *manager.Uploader) {
			if o.PartSize >= manager.MinUploadPartSize {
				u.PartSize = o.PartSize
			}
		}),
		bucket: o.Bucket,
		prefix: strings.Trim(o.KeyPrefix, "/"),
	}
}

func s3Properties(info *ProviderInfo) (map[string]string, error) {
	u, err := url.Parse(info.URL)
	if err != nil || u.Scheme != "s3" || u.Host == "" {
		return nil, errors.NotValidf("s3 link url %q", info.URL)
	}
	q := u.Query()
	all := map[string]string{
		"bucket":          u.Host,
		"prefix":          strings.Trim(u.Path, "/"),
		"region":          q.Get("region"),
		"serviceurl":      q.Get("endpoint"),
		"forcepathstyle":  q.Get("pathstyle"),
		"acesskey":        info.UserName,
		"secretaccesskey": info.Password,
	}
	props := make(map[string]string, len(all))
	for k, v := range all {
		if v != "" {
			props[k] = v
		}
	}
	return props, nil
}

func (s *S3Session) Stat(ctx context.Context, p string) (*Item, error) {
	p, err := cleanItemPath(p)
	if err != nil {
		return nil, err
	}
	if p == "" {
		return &Item{IsFolder: true}, nil
	}

	head, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(p)),
	})
	if err == nil {
		return &Item{
			Path:     p,
			Name:     baseName(p),
			Size:     aws.ToInt64(head.ContentLength),
			Modified: aws.ToTime(head.LastModified),
		}, nil
	}
	if !isNotFound(err) {
		return nil, errors.Annotatef(err, "head %s", p)
	}

	out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(s.bucket),
		Prefix:  aws.String(s.dirKey(p)),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return nil, errors.Annotatef(err, "probing folder %s", p)
	}
	if len(out.Contents) == 0 {
		return nil, errors.NotFoundf("item %q", p)
	}
	return &Item{Path: p, Name: baseName(p), IsFolder: true}, nil
}

func (s *S3Session) List(ctx context.Context, p string) ([]*Item, error) {
	p, err := cleanItemPath(p)
	if err != nil {
		return nil, err
	}
	dir := s.dirKey(p)

	var result []*Item
	pages := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(s.bucket),
		Prefix:    aws.String(dir),
		Delimiter: aws.String("/"),
	})
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return nil, errors.Annotatef(err, "listing %s", p)
		}
		for _, cp := range page.CommonPrefixes {
			rel := strings.TrimSuffix(s.rel(aws.ToString(cp.Prefix)), "/")
			result = append(result, &Item{Path: rel, Name: baseName(rel), IsFolder: true})
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if key == dir {
				continue
			}
			rel := s.rel(key)
			result = append(result, &Item{
				Path:     rel,
				Name:     baseName(rel),
				Size:     aws.ToInt64(obj.Size),
				Modified: aws.ToTime(obj.LastModified),
			})
		}
	}

	if len(result) == 0 && p != "" {
		item, err := s.Stat(ctx, p)
		if err != nil {
			return nil, err
		}
		if !item.IsFolder {
			return nil, errors.NotValidf("listing file %q", p)
		}
	}
	return result, nil
}

func (s *S3Session) CreateFolder(ctx context.Context, parent, name string) (*Item, error) {
	target, err := s.newChild(ctx, parent, name)
	if err != nil {
		return nil, err
	}
	if err := s.putMarker(ctx, target); err != nil {
		return nil, err
	}
	return &Item{Path: target, Name: name, IsFolder: true}, nil
}

func (s *S3Session) Upload(ctx context.Context, parent, name string, r io.Reader, size int64) (*Item, error) {
	if name == "" || strings.Contains(name, "/") {
		return nil, errors.NotValidf("item name %q", name)
	}
	parent, err := cleanItemPath(parent)
	if err != nil {
		return nil, err
	}
	target := joinPath(parent, name)

	if _, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(target)),
		Body:   r,
	}); err != nil {
		return nil, errors.Annotatef(err, "uploading %s", target)
	}
	item, err := s.Stat(ctx, target)
	if err != nil {
		return nil, err
	}
	if size >= 0 && item.Size != size {
		_ = s.deleteKeys(ctx, []string{s.key(target)})
		return nil, errors.NotValidf("upload of %d bytes declared as %d", item.Size, size)
	}
	return item, nil
}

func (s *S3Session) Download(ctx context.Context, p string) (io.ReadCloser, error) {
	p, err := cleanItemPath(p)
	if err != nil {
		return nil, err
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(p)),
	})
	if isNotFound(err) {
		return nil, errors.NotFoundf("item %q", p)
	}
	if err != nil {
		return nil, errors.Annotatef(err, "getting %s", p)
	}
	return out.Body, nil
}

func (s *S3Session) Move(ctx context.Context, p, toParent, name string) (*Item, error) {
	item, err := s.Copy(ctx, p, toParent, name)
	if err != nil {
		return nil, err
	}
	if err := s.Delete(ctx, p); err != nil {
		return nil, err
	}
	return item, nil
}

func (s *S3Session) Copy(ctx context.Context, p, toParent, name string) (*Item, error) {
	src, err := s.Stat(ctx, p)
	if err != nil {
		return nil, err
	}
	if src.Path == "" {
		return nil, errors.NotValidf("copying the root folder")
	}
	target, err := s.newChild(ctx, toParent, name)
	if err != nil {
		return nil, err
	}
	if src.IsFolder && strings.HasPrefix(target+"/", src.Path+"/") {
		return nil, errors.NotValidf("moving %q into itself", src.Path)
	}

	if !src.IsFolder {
		if err := s.copyKey(ctx, s.key(src.Path), s.key(target)); err != nil {
			return nil, err
		}
		return s.Stat(ctx, target)
	}

	from, to := s.dirKey(src.Path), s.dirKey(target)
	keys, err := s.listKeys(ctx, from)
	if err != nil {
		return nil, err
	}
	for _, k := range keys {
		if err := s.copyKey(ctx, k, to+strings.TrimPrefix(k, from)); err != nil {
			return nil, err
		}
	}
	if err := s.putMarker(ctx, target); err != nil {
		return nil, err
	}
	return &Item{Path: target, Name: name, IsFolder: true}, nil
}

func (s *S3Session) Delete(ctx context.Context, p string) error {
	item, err := s.Stat(ctx, p)
	if err != nil {
		return err
	}
	if item.Path == "" {
		return errors.NotValidf("deleting the root folder")
	}
	if !item.IsFolder {
		return s.deleteKeys(ctx, []string{s.key(item.Path)})
	}
	keys, err := s.listKeys(ctx, s.dirKey(item.Path))
	if err != nil {
		return err
	}
	return s.deleteKeys(ctx, keys)
}

func (s *S3Session) Close() error {
	return nil
}

func (s *S3Session) key(p string) string {
	if p == "" {
		return s.prefix
	}
	return joinPath(s.prefix, p)
}

func (s *S3Session) dirKey(p string) string {
	k := s.key(p)
	if k == "" {
		return ""
	}
	return k + "/"
}

func (s *S3Session) rel(key string) string {
	if s.prefix == "" {
		return key
	}
	return strings.TrimPrefix(key, s.prefix+"/")
}

func (s *S3Session) newChild(ctx context.Context, parent, name string) (string, error) {
	if name == "" || strings.Contains(name, "/") {
		return "", errors.NotValidf("item name %q", name)
	}
	dir, err := s.Stat(ctx, parent)
	if err != nil {
		return "", err
	}
	if !dir.IsFolder {
		return "", errors.NotValidf("%q is not a folder", dir.Path)
	}
	target := joinPath(dir.Path, name)
	if _, err := s.Stat(ctx, target); err == nil {
		return "", errors.AlreadyExistsf("item %q", target)
	} else if !errors.Is(err, errors.NotFound) {
		return "", err
	}
	return target, nil
}

func (s *S3Session) putMarker(ctx context.Context, p string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.dirKey(p)),
		Body:   bytes.NewReader(nil),
	})
	if err != nil {
		return errors.Annotatef(err, "creating folder %s", p)
	}
	return nil
}

func (s *S3Session) copyKey(ctx context.Context, from, to string) error {
	source := (&url.URL{Path: s.bucket + "/" + from}).EscapedPath()
	_, err := s.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(s.bucket),
		CopySource: aws.String(source),
		Key:        aws.String(to),
	})
	if err != nil {
		return errors.Annotatef(err, "copying %s", from)
	}
	return nil
}

func (s *S3Session) listKeys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	pages := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return nil, errors.Annotatef(err, "listing %s", prefix)
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}
	return keys, nil
}

func (s *S3Session) deleteKeys(ctx context.Context, keys []string) error {
	for len(keys) > 0 {
		n := min(len(keys), maxDeleteBatch)
		batch := make([]types.ObjectIdentifier, n)
		for i, k := range keys[:n] {
			batch[i] = types.ObjectIdentifier{Key: aws.String(k)}
		}
		out, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(s.bucket),
			Delete: &types.Delete{Objects: batch, Quiet: aws.Bool(true)},
		})
		if err != nil {
			return errors.Annotate(err, "deleting objects")
		}
		if len(out.Errors) > 0 {
			return errors.Errorf("deleting %s: %s", aws.ToString(out.Errors[0].Key), aws.ToString(out.Errors[0].Message))
		}
		keys = keys[n:]
	}
	return nil
}

func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	var noKey *types.NoSuchKey
	var notFound *types.NotFound
	return stderrors.As(err, &noKey) || stderrors.As(err, &notFound)
}
