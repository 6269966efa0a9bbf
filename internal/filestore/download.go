package filestore

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/koustreak/vizly/internal/errs"
)

// Download copies bucket/key to dst. The content lands in a temporary file
// in the same directory first and is renamed into place, so a reader never
// sees a partial database. An existing dst is left untouched.
func Download(ctx context.Context, store Store, bucket, key, dst string) error {
	if _, err := os.Stat(dst); err == nil {
		return nil
	}

	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return errs.Wrap(errs.ErrKindConfig, "cannot create cache directory", err)
	}

	obj, err := store.GetObject(ctx, bucket, key)
	if err != nil {
		return err
	}
	defer obj.Close()

	tmp, err := os.CreateTemp(dir, ".download-*")
	if err != nil {
		return errs.Wrap(errs.ErrKindUnknown, "cannot create cache file", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := io.Copy(tmp, obj); err != nil {
		_ = tmp.Close()
		return errs.Wrap(errs.ErrKindConnectionFailed, "failed to download object", err)
	}
	if err := tmp.Close(); err != nil {
		return errs.Wrap(errs.ErrKindUnknown, "failed to flush cache file", err)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		return errs.Wrap(errs.ErrKindUnknown, "failed to place cache file", err)
	}
	return nil
}
