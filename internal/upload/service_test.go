package upload

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/minio/minio-go/v7"
)

type fakeObjectStore struct {
	exists      bool
	made        []string
	putBucket   string
	putName     string
	putBody     string
	contentType string
	putErr      error
}

func (f *fakeObjectStore) BucketExists(ctx context.Context, bucketName string) (bool, error) {
	return f.exists, nil
}

func (f *fakeObjectStore) MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error {
	f.made = append(f.made, bucketName)
	return nil
}

func (f *fakeObjectStore) PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	if f.putErr != nil {
		return minio.UploadInfo{}, f.putErr
	}
	body, _ := io.ReadAll(reader)
	f.putBucket = bucketName
	f.putName = objectName
	f.putBody = string(body)
	f.contentType = opts.ContentType
	return minio.UploadInfo{Bucket: bucketName, Key: objectName, Size: objectSize}, nil
}

func TestUploadImage(t *testing.T) {
	store := &fakeObjectStore{}
	svc := NewServiceWithClient(store, "images", "https://cdn.example.com/")

	url, err := svc.UploadImage(context.Background(), "Me.PNG", strings.NewReader("png-bytes"), 9)
	if err != nil {
		t.Fatalf("UploadImage() error = %v", err)
	}
	if !strings.HasPrefix(store.putName, "resume_profile_pictures/") || !strings.HasSuffix(store.putName, ".png") {
		t.Fatalf("object name = %q", store.putName)
	}
	if store.contentType != "image/png" || store.putBody != "png-bytes" || store.putBucket != "images" {
		t.Fatalf("unexpected put: %+v", store)
	}
	if url != "https://cdn.example.com/images/"+store.putName {
		t.Fatalf("url = %q", url)
	}
}

func TestUploadImageRejectsUnsupportedTypes(t *testing.T) {
	svc := NewServiceWithClient(&fakeObjectStore{}, "images", "https://cdn.example.com")
	for _, name := range []string{"resume.pdf", "noext", "script.svg"} {
		if _, err := svc.UploadImage(context.Background(), name, strings.NewReader("x"), 1); !errors.Is(err, ErrUnsupportedImage) {
			t.Fatalf("UploadImage(%q) error = %v, want ErrUnsupportedImage", name, err)
		}
	}
}

func TestUploadImageRejectsLargeFiles(t *testing.T) {
	svc := NewServiceWithClient(&fakeObjectStore{}, "images", "https://cdn.example.com")
	if _, err := svc.UploadImage(context.Background(), "big.jpg", strings.NewReader(""), MaxImageBytes+1); err == nil {
		t.Fatal("expected size error")
	}
}

func TestUploadImagePropagatesStoreErrors(t *testing.T) {
	svc := NewServiceWithClient(&fakeObjectStore{putErr: errors.New("bucket gone")}, "images", "https://cdn.example.com")
	if _, err := svc.UploadImage(context.Background(), "a.jpg", strings.NewReader("x"), 1); err == nil {
		t.Fatal("expected error")
	}
}

func TestEnsureBucket(t *testing.T) {
	missing := &fakeObjectStore{}
	if err := NewServiceWithClient(missing, "images", "").EnsureBucket(context.Background()); err != nil {
		t.Fatalf("EnsureBucket() error = %v", err)
	}
	if len(missing.made) != 1 || missing.made[0] != "images" {
		t.Fatalf("made = %v", missing.made)
	}

	present := &fakeObjectStore{exists: true}
	if err := NewServiceWithClient(present, "images", "").EnsureBucket(context.Background()); err != nil {
		t.Fatalf("EnsureBucket() error = %v", err)
	}
	if len(present.made) != 0 {
		t.Fatalf("bucket should not be recreated")
	}
}
