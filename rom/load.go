package rom

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"gbalink/multiboot"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/pierrec/lz4"
)

// GetObjectAPI is the part of the S3 client the loader needs.
type GetObjectAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Loader reads images from local files or S3 objects. A ".lz4" suffix on
// either selects lz4 frame decompression.
type Loader struct {
	// S3 serves s3:// sources; when nil a client is built from the environment.
	S3 GetObjectAPI
}

// Load reads an image with a Loader configured from the environment.
func Load(ctx context.Context, src string) ([]byte, error) {
	return (&Loader{}).Load(ctx, src)
}

func (l *Loader) Load(ctx context.Context, src string) (contents []byte, err error) {
	var rc io.ReadCloser
	if bucket, key, ok := parseS3(src); ok {
		rc, err = l.openS3(ctx, bucket, key)
	} else {
		rc, err = os.Open(src)
	}
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var r io.Reader = rc
	if strings.HasSuffix(strings.ToLower(src), ".lz4") {
		r = lz4.NewReader(rc)
	}

	// one byte past the limit is enough for validation to reject it:
	contents, err = io.ReadAll(io.LimitReader(r, multiboot.MaxImageSize+1))
	if err != nil {
		return nil, fmt.Errorf("rom: read %s: %w", src, err)
	}
	return contents, nil
}

func parseS3(src string) (bucket, key string, ok bool) {
	rest, found := strings.CutPrefix(src, "s3://")
	if !found {
		return
	}
	bucket, key, ok = strings.Cut(rest, "/")
	ok = ok && bucket != "" && key != ""
	return
}

func (l *Loader) openS3(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	client := l.S3
	if client == nil {
		client = newS3Client()
	}

	out, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("rom: s3://%s/%s: %w", bucket, key, err)
	}
	return out.Body, nil
}

func orElse(a, b string) string {
	if a == "" {
		return b
	}
	return a
}

// newS3Client uses anonymous access unless AWS_ACCESS_KEY_ID is set.
// GBALINK_S3_ENDPOINT points it at an S3-compatible store.
func newS3Client() *s3.Client {
	opts := s3.Options{
		Region:      orElse(os.Getenv("AWS_REGION"), "us-east-1"),
		Credentials: aws.AnonymousCredentials{},
	}

	if id := os.Getenv("AWS_ACCESS_KEY_ID"); id != "" {
		opts.Credentials = aws.NewCredentialsCache(aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
			return aws.Credentials{
				AccessKeyID:     id,
				SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
				SessionToken:    os.Getenv("AWS_SESSION_TOKEN"),
				Source:          "Environment",
			}, nil
		}))
	}

	if endpoint := os.Getenv("GBALINK_S3_ENDPOINT"); endpoint != "" {
		opts.BaseEndpoint = aws.String(endpoint)
		opts.UsePathStyle = true
	}

	return s3.New(opts)
}
