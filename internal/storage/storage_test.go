package storage_test

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/mautops/persuratan-gin/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLocalStore 测试本地存储读写删除
func TestLocalStore(t *testing.T) {
	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	ref, err := store.Put(ctx, "2024/03/doc-1.pdf", []byte("%PDF-1.4"))
	require.NoError(t, err)
	assert.Equal(t, "file://2024/03/doc-1.pdf", ref)

	data, err := store.Get(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.4"), data)

	require.NoError(t, store.Delete(ctx, ref))
	_, err = store.Get(ctx, ref)
	assert.ErrorIs(t, err, storage.ErrObjectNotFound)
	// 重复删除不报错
	assert.NoError(t, store.Delete(ctx, ref))
}

// TestLocalStoreRejectsTraversal 测试路径不会越出根目录
func TestLocalStoreRejectsTraversal(t *testing.T) {
	root := t.TempDir()
	store, err := storage.NewLocalStore(root)
	require.NoError(t, err)

	ref, err := store.Put(context.Background(), "../../escape.pdf", []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, "file://escape.pdf", ref)

	_, err = store.Put(context.Background(), "", []byte("x"))
	assert.Error(t, err)
}

// fakeS3 内存中的 S3 客户端
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte)}
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[*in.Bucket+"/"+*in.Key] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[*in.Bucket+"/"+*in.Key]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, *in.Bucket+"/"+*in.Key)
	return &s3.DeleteObjectOutput{}, nil
}

// TestS3Store 测试 S3 存储
func TestS3Store(t *testing.T) {
	client := newFakeS3()
	store := storage.NewS3Store(client, "surat")
	ctx := context.Background()

	ref, err := store.Put(ctx, "sealed/doc-1.pdf", []byte("%PDF"))
	require.NoError(t, err)
	assert.Equal(t, "s3://surat/sealed/doc-1.pdf", ref)

	data, err := store.Get(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF"), data)

	require.NoError(t, store.Delete(ctx, ref))
	_, err = store.Get(ctx, ref)
	assert.ErrorIs(t, err, storage.ErrObjectNotFound)

	_, err = store.Get(ctx, "file://local.pdf")
	assert.Error(t, err)
	_, err = store.Get(ctx, "s3://only-bucket")
	assert.Error(t, err)
}
