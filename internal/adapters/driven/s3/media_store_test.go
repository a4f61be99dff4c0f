package s3

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBucket struct {
	mu      sync.Mutex
	err     error
	inputs  []*s3.PutObjectInput
	bodies  [][]byte
	delErr  error
	deleted []string
}

func (f *fakeBucket) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.delErr != nil {
		return nil, f.delErr
	}
	f.deleted = append(f.deleted, aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeBucket) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.inputs = append(f.inputs, in)
	f.bodies = append(f.bodies, body)
	return &s3.PutObjectOutput{}, nil
}

func writeTempFile(t *testing.T, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, content, 0o600))
	return path
}

func newTestMediaStore(bucket ObjectAPI) *MediaStore {
	store := NewMediaStore(bucket, Config{
		Endpoint: "http://127.0.0.1:9000/",
		Bucket:   "media",
	})
	store.now = func() time.Time { return time.Date(2026, 2, 3, 10, 0, 0, 0, time.UTC) }
	return store
}

func TestMediaStore_Upload(t *testing.T) {
	bucket := &fakeBucket{}
	store := newTestMediaStore(bucket)
	path := writeTempFile(t, "avatar.PNG", []byte("\x89PNG\r\n\x1a\nimage"))

	url, err := store.Upload(context.Background(), path)
	require.NoError(t, err)

	assert.Regexp(t, regexp.MustCompile(`^http://127\.0\.0\.1:9000/media/media/2026/02/03/[0-9a-f-]{36}\.png$`), url)

	require.Len(t, bucket.inputs, 1)
	in := bucket.inputs[0]
	assert.Equal(t, "media", aws.ToString(in.Bucket))
	assert.Equal(t, "image/png", aws.ToString(in.ContentType))
	assert.Equal(t, int64(13), aws.ToInt64(in.ContentLength))
	assert.Equal(t, "\x89PNG\r\n\x1a\nimage", string(bucket.bodies[0]))

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "local file is removed after upload")
}

func TestMediaStore_Upload_EmptyPath(t *testing.T) {
	bucket := &fakeBucket{}
	store := newTestMediaStore(bucket)

	url, err := store.Upload(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, url)
	assert.Empty(t, bucket.inputs)
}

func TestMediaStore_Upload_FailureRemovesFile(t *testing.T) {
	bucket := &fakeBucket{err: errors.New("bucket unreachable")}
	store := newTestMediaStore(bucket)
	path := writeTempFile(t, "cover.jpg", []byte("jpeg bytes"))

	url, err := store.Upload(context.Background(), path)
	require.Error(t, err)
	assert.ErrorIs(t, err, bucket.err)
	assert.Empty(t, url)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "local file is removed after a failed upload")
}

func TestMediaStore_Upload_MissingFile(t *testing.T) {
	store := newTestMediaStore(&fakeBucket{})

	_, err := store.Upload(context.Background(), filepath.Join(t.TempDir(), "gone.png"))
	assert.Error(t, err)
}

func TestMediaStore_Upload_EmptyFile(t *testing.T) {
	bucket := &fakeBucket{}
	store := newTestMediaStore(bucket)
	path := writeTempFile(t, "empty.png", nil)

	_, err := store.Upload(context.Background(), path)
	assert.Error(t, err)
	assert.Empty(t, bucket.inputs)
}

func TestMediaStore_Upload_SniffsUnknownExtension(t *testing.T) {
	bucket := &fakeBucket{}
	store := newTestMediaStore(bucket)
	content := []byte("GIF89a......")
	path := writeTempFile(t, "upload", content)

	_, err := store.Upload(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "image/gif", aws.ToString(bucket.inputs[0].ContentType))
	assert.Equal(t, content, bucket.bodies[0], "sniffing must not consume the body")
}

func TestNewMediaStore_PublicURL(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{"explicit public url", Config{PublicURL: "https://cdn.example.com/", Endpoint: "http://minio:9000"}, "https://cdn.example.com"},
		{"endpoint fallback", Config{Endpoint: "http://minio:9000"}, "http://minio:9000"},
		{"aws fallback", Config{Region: "eu-west-1"}, "https://s3.eu-west-1.amazonaws.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewMediaStore(&fakeBucket{}, tt.cfg).publicURL)
		})
	}
}

func TestMediaStore_DeleteUploaded(t *testing.T) {
	bucket := &fakeBucket{}
	store := newTestMediaStore(bucket)
	path := writeTempFile(t, "cover.jpg", []byte("jpeg-bytes"))

	url, err := store.Upload(context.Background(), path)
	require.NoError(t, err)

	require.NoError(t, store.Delete(context.Background(), url))
	require.Len(t, bucket.deleted, 1)
	assert.Equal(t, "media/"+aws.ToString(bucket.inputs[0].Key), bucket.deleted[0])
}

func TestMediaStore_Delete(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		delErr  error
		wantErr bool
		deletes int
	}{
		{"empty url", "", nil, false, 0},
		{"foreign url", "https://elsewhere.example/media/x.png", nil, true, 0},
		{"bucket root", "http://127.0.0.1:9000/media/", nil, true, 0},
		{"backend error", "http://127.0.0.1:9000/media/media/2026/02/03/a.png", errors.New("denied"), true, 0},
		{"object", "http://127.0.0.1:9000/media/media/2026/02/03/a.png", nil, false, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bucket := &fakeBucket{delErr: tt.delErr}
			err := newTestMediaStore(bucket).Delete(context.Background(), tt.url)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Len(t, bucket.deleted, tt.deletes)
		})
	}
}

func TestNewClient(t *testing.T) {
	client, err := NewClient(context.Background(), Config{
		Region:    "us-east-1",
		AccessKey: "minio",
		SecretKey: "minio123",
		Endpoint:  "http://127.0.0.1:9000",
	})
	require.NoError(t, err)
	assert.NotNil(t, client)
}

func TestNewClient_ConfigError(t *testing.T) {
	orig := loadDefaultAWSConfig
	t.Cleanup(func() { loadDefaultAWSConfig = orig })

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*config.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, errors.New("no config")
	}

	_, err := NewClient(context.Background(), Config{Region: "us-east-1"})
	assert.Error(t, err)
}
