package delivery

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	beaconerrors "github.com/arkilian/beacon/internal/errors"
)

// FileTransport writes each batch under a local directory using the same
// layout as S3Transport. It is meant for development and for hosts that ship
// the directory with their own tooling.
type FileTransport struct {
	basePath string
}

// NewFileTransport creates the base directory if needed.
func NewFileTransport(basePath string) (*FileTransport, error) {
	if basePath == "" {
		return nil, fmt.Errorf("delivery: file transport directory is empty")
	}
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	return &FileTransport{basePath: basePath}, nil
}

// Send writes p atomically: a temp file in the target directory is renamed
// into place so readers never see a partial batch.
func (t *FileTransport) Send(ctx context.Context, p *Payload) error {
	if err := ctx.Err(); err != nil {
		return beaconerrors.NewDeliveryError(beaconerrors.CodeTransportFailed, "context done before write", err)
	}
	body, err := p.Marshal()
	if err != nil {
		return beaconerrors.NewDeliveryError(beaconerrors.CodeEncodeFailed, "failed to encode batch", err)
	}

	dest := t.Path(p)
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return beaconerrors.NewDeliveryError(beaconerrors.CodeTransportFailed, "failed to create batch directory", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".batch-*")
	if err != nil {
		return beaconerrors.NewDeliveryError(beaconerrors.CodeTransportFailed, "failed to create temp file", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		return beaconerrors.NewDeliveryError(beaconerrors.CodeTransportFailed, "failed to write batch", err)
	}
	if err := tmp.Close(); err != nil {
		return beaconerrors.NewDeliveryError(beaconerrors.CodeTransportFailed, "failed to close batch", err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return beaconerrors.NewDeliveryError(beaconerrors.CodeTransportFailed, "failed to publish batch", err)
	}
	return nil
}

// Path returns where p is written.
func (t *FileTransport) Path(p *Payload) string {
	return filepath.Join(t.basePath, filepath.FromSlash(ObjectKey("", p)))
}

// Close is a no-op.
func (t *FileTransport) Close() error {
	return nil
}
