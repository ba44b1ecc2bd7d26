package memory

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"platecore/internal/blob/core"
)

func TestMemoryStoreSemantics(t *testing.T) {
	ctx := context.Background()
	store := New()
	if store.Driver() != core.DriverMemory {
		t.Fatalf("driver = %s", store.Driver())
	}

	if _, err := store.Put(ctx, "EB1/hole_25.png", bytes.NewReader([]byte("a")), core.PutOptions{}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, err := store.Put(ctx, "EB1/hole_25.png", bytes.NewReader([]byte("b")), core.PutOptions{}); err == nil {
		t.Fatal("duplicate key accepted")
	}

	_, rc, err := store.Get(ctx, "EB1/hole_25.png")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	data, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(data) != "a" {
		t.Fatalf("data = %q", data)
	}

	if _, err := store.Head(ctx, "missing"); err == nil {
		t.Fatal("missing Head returned no error")
	}
	if _, err := store.PresignURL(ctx, "EB1/hole_25.png", core.SignedURLOptions{}); !errors.Is(err, core.ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}

	if _, err := store.Put(ctx, "EB2/hole_1.png", bytes.NewReader([]byte("c")), core.PutOptions{}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	infos, err := store.List(ctx, "EB1/")
	if err != nil || len(infos) != 1 {
		t.Fatalf("List = (%+v, %v)", infos, err)
	}

	ok, err := store.Delete(ctx, "EB1/hole_25.png")
	if err != nil || !ok {
		t.Fatalf("Delete = (%v, %v)", ok, err)
	}
	if ok, _ := store.Delete(ctx, "EB1/hole_25.png"); ok {
		t.Fatal("second Delete reported existing blob")
	}
}
