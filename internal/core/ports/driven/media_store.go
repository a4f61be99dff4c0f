package driven

import "context"

// MediaStore persists uploaded media and returns a durable URL.
type MediaStore interface {
	// Upload stores the file at localPath and returns its public URL.
	// An empty localPath uploads nothing and returns an empty URL.
	// The local file is removed once the upload attempt completes.
	Upload(ctx context.Context, localPath string) (string, error)

	// Delete removes a previously uploaded object by the URL Upload returned.
	// An empty URL is a no-op.
	Delete(ctx context.Context, url string) error
}
