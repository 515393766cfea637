package adapter

import (
	"context"
	"io"
	"path"

	"cloud.google.com/go/storage"
	"github.com/m-mizutani/goerr/v2"
)

// defaultTaskPrefix is the object namespace task records live under.
const defaultTaskPrefix = "tasks"

// Storage archives finished task records. Records are keyed by task id; the
// key-to-object layout is owned by the implementation.
type Storage interface {
	// PutTask returns a writer for the record of one task. The caller must
	// close the writer to commit the object.
	PutTask(ctx context.Context, taskID string) (io.WriteCloser, error)
	// GetTask loads a previously archived task record.
	GetTask(ctx context.Context, taskID string) (io.ReadCloser, error)
}

// storageClient implements Storage on a Cloud Storage bucket.
type storageClient struct {
	bucketName string
	prefix     string
	client     *storage.Client
}

type StorageOption func(*storageClient)

// WithTaskPrefix overrides the object prefix task records are stored under.
func WithTaskPrefix(prefix string) StorageOption {
	return func(s *storageClient) {
		s.prefix = prefix
	}
}

// NewStorage creates a Storage backed by a Cloud Storage bucket.
func NewStorage(ctx context.Context, bucketName string, opts ...StorageOption) (Storage, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create storage client")
	}

	s := &storageClient{
		bucketName: bucketName,
		prefix:     defaultTaskPrefix,
		client:     client,
	}
	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// taskObject maps a task id to its object name.
func (s *storageClient) taskObject(taskID string) string {
	return path.Join(s.prefix, taskID+".json")
}

func (s *storageClient) PutTask(ctx context.Context, taskID string) (io.WriteCloser, error) {
	if taskID == "" {
		return nil, goerr.New("task id is required")
	}

	obj := s.client.Bucket(s.bucketName).Object(s.taskObject(taskID))
	writer := obj.NewWriter(ctx)
	writer.ContentType = "application/json"
	return writer, nil
}

func (s *storageClient) GetTask(ctx context.Context, taskID string) (io.ReadCloser, error) {
	obj := s.client.Bucket(s.bucketName).Object(s.taskObject(taskID))
	reader, err := obj.NewReader(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read task record", goerr.V("taskID", taskID))
	}

	return reader, nil
}
