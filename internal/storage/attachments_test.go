package storage

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"messenger-service/internal/apperrors"
)

type fakeClient struct {
	objects map[string]string
	putErr  error
}

func newFakeClient() *fakeClient {
	return &fakeClient{objects: map[string]string{}}
}

func (f *fakeClient) PutObject(_ context.Context, _, objectName string, reader io.Reader, _ int64, _ minio.PutObjectOptions) (minio.UploadInfo, error) {
	if f.putErr != nil {
		return minio.UploadInfo{}, f.putErr
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return minio.UploadInfo{}, err
	}
	f.objects[objectName] = string(body)
	return minio.UploadInfo{Key: objectName}, nil
}

func (f *fakeClient) ListObjects(_ context.Context, _ string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo {
	out := make(chan minio.ObjectInfo, len(f.objects))
	for key := range f.objects {
		if strings.HasPrefix(key, opts.Prefix) {
			out <- minio.ObjectInfo{Key: key}
		}
	}
	close(out)
	return out
}

func (f *fakeClient) RemoveObject(_ context.Context, _, objectName string, _ minio.RemoveObjectOptions) error {
	delete(f.objects, objectName)
	return nil
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		kind     Kind
		filename string
		size     int64
		err      error
	}{
		{name: "image ok", kind: KindImage, filename: "cat.PNG", size: 1024},
		{name: "image too large", kind: KindImage, filename: "cat.png", size: 6 << 20, err: ErrTooLarge},
		{name: "empty file", kind: KindDocument, filename: "a.pdf", size: 0, err: ErrTooLarge},
		{name: "document ok", kind: KindDocument, filename: "report.pdf", size: 2048},
		{name: "document as image", kind: KindImage, filename: "report.pdf", size: 2048, err: ErrUnsupportedType},
		{name: "audio ok", kind: KindAudio, filename: "note.mp3", size: 2048},
		{name: "unknown kind", kind: Kind("video"), filename: "clip.mp4", size: 10, err: ErrUnsupportedType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.kind, tt.filename, tt.size)
			if tt.err == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestPutStoresUnderThreadPath(t *testing.T) {
	client := newFakeClient()
	store := &AttachmentStore{client: client, bucket: "messenger"}

	key, err := store.Put(context.Background(), "t1", KindImage, "cat.JPG", strings.NewReader("img"), 3, "image/jpeg")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, "threads/t1/images/"))
	assert.True(t, strings.HasSuffix(key, ".jpg"))
	assert.Equal(t, "img", client.objects[key])
}

func TestPutWrapsClientError(t *testing.T) {
	client := newFakeClient()
	client.putErr = errors.New("unreachable")
	store := &AttachmentStore{client: client, bucket: "messenger"}

	_, err := store.Put(context.Background(), "t1", KindAudio, "note.ogg", strings.NewReader("a"), 1, "audio/ogg")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unreachable")
	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeStorage, appErr.Code)
	assert.Equal(t, http.StatusBadGateway, apperrors.StatusOf(err))
}

func TestValidationErrorsAreUnprocessable(t *testing.T) {
	err := Validate(KindImage, "virus.exe", 10)
	assert.Equal(t, http.StatusUnprocessableEntity, apperrors.StatusOf(err))
}

func TestRemove(t *testing.T) {
	client := newFakeClient()
	client.objects["threads/t1/images/a.png"] = "a"
	store := &AttachmentStore{client: client, bucket: "messenger"}

	require.NoError(t, store.Remove(context.Background(), "threads/t1/images/a.png"))
	assert.Empty(t, client.objects)
}

// streamingClient produces listings from a goroutine, the way minio does.
type streamingClient struct {
	*fakeClient
	done chan struct{}
}

func (s *streamingClient) ListObjects(ctx context.Context, _ string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo {
	out := make(chan minio.ObjectInfo)
	go func() {
		defer close(s.done)
		defer close(out)
		items := []minio.ObjectInfo{{Err: errors.New("access denied")}, {Key: opts.Prefix + "a.png"}, {Key: opts.Prefix + "b.png"}}
		for _, item := range items {
			select {
			case out <- item:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func TestDeletePrefixStopsListerOnError(t *testing.T) {
	client := &streamingClient{fakeClient: newFakeClient(), done: make(chan struct{})}
	store := &AttachmentStore{client: client, bucket: "messenger"}

	_, err := store.DeletePrefix(context.Background(), ThreadPath("t1"))
	require.Error(t, err)

	select {
	case <-client.done:
	case <-time.After(time.Second):
		t.Fatal("object lister still running after DeletePrefix returned")
	}
}

func TestDeletePrefixOnlyRemovesThreadObjects(t *testing.T) {
	client := newFakeClient()
	client.objects["threads/t1/images/a.png"] = "a"
	client.objects["threads/t1/documents/b.pdf"] = "b"
	client.objects["threads/t10/images/c.png"] = "c"
	store := &AttachmentStore{client: client, bucket: "messenger"}

	removed, err := store.DeletePrefix(context.Background(), ThreadPath("t1"))
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	assert.Len(t, client.objects, 1)
	assert.Contains(t, client.objects, "threads/t10/images/c.png")
}
