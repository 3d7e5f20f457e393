package datastore

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/juju/errors"
	"github.com/mitchellh/mapstructure"
)

// S3Options are the s3 handler and consumer properties. Key names follow
// the consumer property names tenants supply.
type S3Options struct {
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"serviceurl"`
	AccessKeyID     string `mapstructure:"acesskey"`
	SecretAccessKey string `mapstructure:"secretaccesskey"`
	ForcePathStyle  bool   `mapstructure:"forcepathstyle"`
	KeyPrefix       string `mapstructure:"prefix"`
	PartSize        int64  `mapstructure:"partsize"`
}

// DecodeS3Options decodes string properties. Numbers and booleans are
// accepted in their string form.
func DecodeS3Options(props map[string]string) (S3Options, error) {
	var o S3Options
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &o,
	})
	if err != nil {
		return o, fmt.Errorf("creating property decoder: %w", err)
	}
	if err := dec.Decode(props); err != nil {
		return o, fmt.Errorf("decoding s3 properties: %w", err)
	}
	if o.Bucket == "" {
		return o, errors.NotValidf("s3 store without bucket")
	}
	if o.Region == "" {
		return o, errors.NotValidf("s3 store without region")
	}
	return o, nil
}

// NewS3Client builds a client from options. Static credentials are used
// when both keys are present, otherwise the default credential chain.
func NewS3Client(ctx context.Context, o S3Options) (*s3.Client, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(o.Region)}
	if o.AccessKeyID != "" && o.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(o.AccessKeyID, o.SecretAccessKey, "")))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return s3.NewFromConfig(cfg, func(opt *s3.Options) {
		if o.Endpoint != "" {
			opt.BaseEndpoint = aws.String(o.Endpoint)
			opt.UsePathStyle = true
		}
		if o.ForcePathStyle {
			opt.UsePathStyle = true
		}
	}), nil
}

// S3API is the subset of the S3 client the store calls.
type S3API interface {
	manager.UploadAPIClient
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Store keys objects as [prefix/]<tenant>/<module>/[<domain>/]<path>.
type S3Store struct {
	client   S3API
	uploader *manager.Uploader
	bucket   string
	prefix   string
}

var _ Store = (*S3Store)(nil)

// NewS3Store decodes opts.Properties and connects.
func NewS3Store(ctx context.Context, opts Options) (*S3Store, error) {
	o, err := DecodeS3Options(opts.Properties)
	if err != nil {
		return nil, err
	}
	client, err := NewS3Client(ctx, o)
	if err != nil {
		return nil, err
	}
	return NewS3StoreWithClient(client, o, opts.Tenant, opts.Module.Name), nil
}

// NewS3StoreWithClient binds an existing client to tenant and module.
func NewS3StoreWithClient(client S3API, o S3Options, tenant, module string) *S3Store {
	parts := make([]string, 0, 3)
	if p := strings.Trim(o.KeyPrefix, "/"); p != "" {
		parts = append(parts, p)
	}
	parts = append(parts, tenant, module)

	return &S3Store{
		client: client,
		uploader: manager.NewUploader(client, func(u *manager.Uploader) {
			if o.PartSize >= manager.MinUploadPartSize {
				u.PartSize = o.PartSize
			}
		}),
		bucket: o.Bucket,
		prefix: strings.Join(parts, "/"),
	}
}

// Key returns the object key for domain and p.
func (s *S3Store) Key(domain, p string) (string, error) {
	rel, err := cleanPath(p)
	if err != nil {
		return "", err
	}
	if domain != "" {
		return s.prefix + "/" + domain + "/" + rel, nil
	}
	return s.prefix + "/" + rel, nil
}

func (s *S3Store) Save(ctx context.Context, domain, p string, r io.Reader, size int64) (int64, error) {
	key, err := s.Key(domain, p)
	if err != nil {
		return 0, err
	}
	cr := &countingReader{r: r}
	if _, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   cr,
	}); err != nil {
		return 0, fmt.Errorf("uploading %s: %w", key, err)
	}
	if err := checkSize(size, cr.n); err != nil {
		// The object is already written; remove it so a failed save leaves nothing behind.
		_, _ = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(key)})
		return 0, err
	}
	return cr.n, nil
}

func (s *S3Store) Open(ctx context.Context, domain, p string) (io.ReadCloser, error) {
	key, err := s.Key(domain, p)
	if err != nil {
		return nil, err
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if isS3NotFound(err) {
		return nil, errors.NotFoundf("content %q", p)
	}
	if err != nil {
		return nil, fmt.Errorf("getting %s: %w", key, err)
	}
	return out.Body, nil
}

func (s *S3Store) Delete(ctx context.Context, domain, p string) (int64, error) {
	size, err := s.Size(ctx, domain, p)
	if errors.Is(err, errors.NotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	key, _ := s.Key(domain, p)
	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}); err != nil {
		return 0, fmt.Errorf("deleting %s: %w", key, err)
	}
	return size, nil
}

func (s *S3Store) Exists(ctx context.Context, domain, p string) (bool, error) {
	_, err := s.Size(ctx, domain, p)
	if errors.Is(err, errors.NotFound) {
		return false, nil
	}
	return err == nil, err
}

func (s *S3Store) Size(ctx context.Context, domain, p string) (int64, error) {
	key, err := s.Key(domain, p)
	if err != nil {
		return 0, err
	}
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if isS3NotFound(err) {
		return 0, errors.NotFoundf("content %q", p)
	}
	if err != nil {
		return 0, fmt.Errorf("head %s: %w", key, err)
	}
	return aws.ToInt64(out.ContentLength), nil
}

func isS3NotFound(err error) bool {
	if err == nil {
		return false
	}
	var noKey *types.NoSuchKey
	var notFound *types.NotFound
	return stderrors.As(err, &noKey) || stderrors.As(err, &notFound)
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
