// Package storage writes export artifacts to a local directory and
// optionally uploads them to S3-compatible object storage.
package storage

import (
	"io"
	"os"
	"path/filepath"

	"github.com/saturnines/commerce-export/pkg/errors"
)

// Dir is the local output directory of one project.
type Dir struct {
	root string
}

// NewDir creates root if needed.
func NewDir(root string) (*Dir, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, errors.WrapError(err, errors.ErrExport, "failed to create output directory")
	}
	return &Dir{root: root}, nil
}

func (d *Dir) Root() string { return d.root }

// Path returns the location of the artifact name
func (d *Dir) Path(name string) string { return filepath.Join(d.root, name) }

// Write renders an artifact through fn and moves it into place once fn
// succeeds, so a failed run never leaves a truncated file behind. The
// previous artifact, if any, is overwritten. name may contain
// subdirectories of the root.
func (d *Dir) Write(name string, fn func(w io.Writer) error) (string, error) {
	target := d.Path(name)
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.WrapError(err, errors.ErrExport, "failed to create directory for "+name)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(target)+".*")
	if err != nil {
		return "", errors.WrapError(err, errors.ErrExport, "failed to create "+name)
	}
	defer os.Remove(tmp.Name())

	if err := fn(tmp); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return "", errors.WrapError(err, errors.ErrExport, "failed to write "+name)
	}
	if err := tmp.Close(); err != nil {
		return "", errors.WrapError(err, errors.ErrExport, "failed to write "+name)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return "", errors.WrapError(err, errors.ErrExport, "failed to move "+name+" into place")
	}
	return target, nil
}
