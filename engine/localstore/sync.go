package localstore

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// Snapshot files move through a JetStream object store bucket. The TUI
// pulls the latest snapshot on first run; cmd/snapshot pushes new ones.
const (
	DefaultBucket = "snapshots"
	DefaultObject = "oireachtas_debates.db"
)

// objectAPI is the slice of jetstream.ObjectStore the bucket uses.
type objectAPI interface {
	GetFile(ctx context.Context, name, file string, opts ...jetstream.GetObjectOpt) error
	Put(ctx context.Context, meta jetstream.ObjectMeta, reader io.Reader) (*jetstream.ObjectInfo, error)
}

// Bucket is the object store bucket holding corpus snapshots.
type Bucket struct {
	objects objectAPI
	name    string
	log     *slog.Logger
}

// OpenBucket creates the bucket if needed and returns a handle to it.
func OpenBucket(ctx context.Context, nc *nats.Conn, name string, log *slog.Logger) (*Bucket, error) {
	if name == "" {
		name = DefaultBucket
	}
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("localstore: jetstream: %w", err)
	}
	store, err := js.CreateOrUpdateObjectStore(ctx, jetstream.ObjectStoreConfig{
		Bucket:      name,
		Description: "debate corpus snapshots",
	})
	if err != nil {
		return nil, fmt.Errorf("localstore: open bucket %s: %w", name, err)
	}
	return &Bucket{objects: store, name: name, log: log}, nil
}

// Pull downloads the named snapshot to path, unless a file is already
// there. An existing local file always wins so an interrupted session
// can resume with the data it had. Reports whether it downloaded.
func (b *Bucket) Pull(ctx context.Context, object, path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		b.log.Debug("localstore.pull.skip", "path", path)
		return false, nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return false, fmt.Errorf("localstore: create dir %s: %w", dir, err)
		}
	}
	if err := b.objects.GetFile(ctx, object, path); err != nil {
		return false, fmt.Errorf("localstore: pull %s from %s: %w", object, b.name, err)
	}
	b.log.Info("localstore.pull", "bucket", b.name, "object", object, "path", path)
	return true, nil
}

// Push uploads a snapshot file under the given object name, replacing
// any previous snapshot with that name.
func (b *Bucket) Push(ctx context.Context, object, path string) (*jetstream.ObjectInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("localstore: open snapshot %s: %w", path, err)
	}
	defer f.Close()

	info, err := b.objects.Put(ctx, jetstream.ObjectMeta{Name: object}, f)
	if err != nil {
		return nil, fmt.Errorf("localstore: push %s to %s: %w", object, b.name, err)
	}
	b.log.Info("localstore.push", "bucket", b.name, "object", object, "bytes", info.Size)
	return info, nil
}
