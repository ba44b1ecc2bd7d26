package blob

import (
	"context"
	"fmt"
	"os"

	fsblob "platecore/internal/infra/blob/fs"
	memoryblob "platecore/internal/infra/blob/memory"
	s3blob "platecore/internal/infra/blob/s3"
)

// Open selects a blob.Store implementation using environment variables.
//
//	PLATECORE_BLOB_DRIVER: fs|s3|memory (default fs)
//	PLATECORE_BLOB_FS_ROOT: directory root when driver=fs (default ./slicedata)
//	(S3 specific variables documented in the s3 driver)
func Open(ctx context.Context) (Store, error) {
	driver := os.Getenv("PLATECORE_BLOB_DRIVER")
	if driver == "" {
		driver = string(DriverFilesystem)
	}
	switch Driver(driver) {
	case DriverFilesystem:
		return fsblob.New(os.Getenv("PLATECORE_BLOB_FS_ROOT"))
	case DriverS3:
		return s3blob.OpenFromEnv(ctx)
	case DriverMemory:
		return memoryblob.New(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", driver)
	}
}

// NewFilesystem returns a filesystem store rooted at path.
func NewFilesystem(root string) (Store, error) { return fsblob.New(root) }

// NewMemory returns an in-memory store for tests.
func NewMemory() Store { return memoryblob.New() }
