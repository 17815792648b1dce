package repository

import (
	"context"
	"io"

	"crosspost/domain/model"
)

// IMediaStore keeps uploaded media for the lifetime of a publish request.
type IMediaStore interface {
	Save(ctx context.Context, fileName, contentType string, r io.Reader) (*model.MediaResource, error)
	Open(ctx context.Context, handle string) (io.ReadSeekCloser, error)
	// Release deletes the media. A missing handle is not an error.
	Release(ctx context.Context, handle string) error
}
