package repository

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/kioku/pkg/adapter"
	"github.com/m-mizutani/kioku/pkg/model"
)

const gcsScheme = "gs://"

// Object stores the snapshot as one object of an object storage
type Object struct {
	storage adapter.Storage
	bucket  string
	key     string
}

func NewObject(storage adapter.Storage, bucket, key string) *Object {
	return &Object{
		storage: storage,
		bucket:  bucket,
		key:     key,
	}
}

func (o *Object) Location() string {
	return gcsScheme + o.bucket + "/" + o.key
}

func (o *Object) Load(ctx context.Context) (model.Transcript, bool, error) {
	reader, err := o.storage.Get(ctx, o.key)
	if errors.Is(err, adapter.ErrObjectNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, goerr.Wrap(err, "failed to get snapshot from storage")
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, false, goerr.Wrap(err, "failed to read snapshot", goerr.V("location", o.Location()))
	}

	transcript, err := decode(data, o.Location())
	if err != nil {
		return nil, false, err
	}
	return transcript, true, nil
}

func (o *Object) Save(ctx context.Context, transcript model.Transcript) error {
	data, err := encode(transcript)
	if err != nil {
		return err
	}

	writer, err := o.storage.Put(ctx, o.key)
	if err != nil {
		return goerr.Wrap(err, "failed to create storage writer")
	}

	if _, err := writer.Write(data); err != nil {
		_ = writer.Close()
		return goerr.Wrap(err, "failed to write snapshot", goerr.V("location", o.Location()))
	}

	// The object is committed on Close; its error is the upload result.
	if err := writer.Close(); err != nil {
		return goerr.Wrap(err, "failed to commit snapshot", goerr.V("location", o.Location()))
	}

	return nil
}

func (o *Object) Close() error {
	return o.storage.Close()
}

func parseObjectLocation(location string) (string, string, error) {
	rest, _ := strings.CutPrefix(location, gcsScheme)
	bucket, key, ok := strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" || strings.HasSuffix(key, "/") {
		return "", "", goerr.Wrap(ErrInvalidLocation, "expected gs://<bucket>/<object>",
			goerr.V("location", location))
	}
	return bucket, key, nil
}
