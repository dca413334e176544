package localstore

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/nats-io/nats.go/jetstream"
)

type fakeObjects struct {
	files    map[string][]byte
	getCalls int
	getErr   error
	putMeta  jetstream.ObjectMeta
	putData  []byte
}

func (f *fakeObjects) GetFile(_ context.Context, name, file string, _ ...jetstream.GetObjectOpt) error {
	f.getCalls++
	if f.getErr != nil {
		return f.getErr
	}
	data, ok := f.files[name]
	if !ok {
		return jetstream.ErrObjectNotFound
	}
	return os.WriteFile(file, data, 0o644)
}

func (f *fakeObjects) Put(_ context.Context, meta jetstream.ObjectMeta, reader io.Reader) (*jetstream.ObjectInfo, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	f.putMeta = meta
	f.putData = data
	return &jetstream.ObjectInfo{ObjectMeta: meta, Size: uint64(len(data))}, nil
}

func testBucket(objects objectAPI) *Bucket {
	return &Bucket{
		objects: objects,
		name:    DefaultBucket,
		log:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestPullDownloads(t *testing.T) {
	fake := &fakeObjects{files: map[string][]byte{DefaultObject: []byte("sqlite bytes")}}
	b := testBucket(fake)
	path := filepath.Join(t.TempDir(), "data", "speeches.db")

	downloaded, err := b.Pull(context.Background(), DefaultObject, path)
	if err != nil {
		t.Fatalf("Pull: %v", err)
	}
	if !downloaded {
		t.Fatal("expected a download")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read pulled file: %v", err)
	}
	if string(data) != "sqlite bytes" {
		t.Fatalf("content = %q", data)
	}
}

func TestPullSkipsExistingFile(t *testing.T) {
	fake := &fakeObjects{files: map[string][]byte{DefaultObject: []byte("remote")}}
	b := testBucket(fake)

	path := filepath.Join(t.TempDir(), "speeches.db")
	if err := os.WriteFile(path, []byte("local"), 0o644); err != nil {
		t.Fatal(err)
	}

	downloaded, err := b.Pull(context.Background(), DefaultObject, path)
	if err != nil {
		t.Fatalf("Pull: %v", err)
	}
	if downloaded {
		t.Fatal("existing file should win")
	}
	if fake.getCalls != 0 {
		t.Fatalf("GetFile called %d times", fake.getCalls)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "local" {
		t.Fatalf("local file overwritten: %q", data)
	}
}

func TestPullMissingObject(t *testing.T) {
	b := testBucket(&fakeObjects{})
	path := filepath.Join(t.TempDir(), "speeches.db")

	_, err := b.Pull(context.Background(), "nope.db", path)
	if !errors.Is(err, jetstream.ErrObjectNotFound) {
		t.Fatalf("err = %v, want ErrObjectNotFound", err)
	}
}

func TestPush(t *testing.T) {
	fake := &fakeObjects{}
	b := testBucket(fake)

	path := filepath.Join(t.TempDir(), "speeches.db")
	if err := os.WriteFile(path, []byte("snapshot"), 0o644); err != nil {
		t.Fatal(err)
	}

	info, err := b.Push(context.Background(), DefaultObject, path)
	if err != nil {
		t.Fatalf("Push: %v", err)
	}
	if fake.putMeta.Name != DefaultObject {
		t.Errorf("object name = %q", fake.putMeta.Name)
	}
	if string(fake.putData) != "snapshot" {
		t.Errorf("uploaded = %q", fake.putData)
	}
	if info.Size != 8 {
		t.Errorf("size = %d", info.Size)
	}
}

func TestPushMissingFile(t *testing.T) {
	b := testBucket(&fakeObjects{})
	if _, err := b.Push(context.Background(), DefaultObject, "/nonexistent/speeches.db"); err == nil {
		t.Fatal("expected error")
	}
}
