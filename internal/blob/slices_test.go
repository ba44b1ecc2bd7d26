package blob

import (
	"context"
	"errors"
	"testing"
)

func TestSliceKeyLayouts(t *testing.T) {
	key, err := SliceKey("EB10000026", 25, "png")
	if err != nil {
		t.Fatalf("SliceKey: %v", err)
	}
	if key != "EB10000026/hole_25.png" {
		t.Fatalf("key = %q", key)
	}
	for _, in := range []string{"EB10000026/hole_25.png", "EB10000026_hole_25.png", "EB10000026_hole_25.jpg"} {
		specimen, well, err := ParseSliceKey(in)
		if err != nil {
			t.Fatalf("ParseSliceKey(%q): %v", in, err)
		}
		if specimen != "EB10000026" || well != 25 {
			t.Fatalf("ParseSliceKey(%q) = (%q, %d)", in, specimen, well)
		}
	}
}

func TestSliceKeyValidation(t *testing.T) {
	if _, err := SliceKey("", 25, "png"); err == nil {
		t.Fatal("empty specimen accepted")
	}
	if _, err := SliceKey("EB1", 0, "png"); err == nil {
		t.Fatal("well 0 accepted")
	}
	key, err := SliceKey("EB1", 1, "")
	if err != nil || key != "EB1/hole_1.png" {
		t.Fatalf("default extension: (%q, %v)", key, err)
	}
}

func TestParseSliceKeyRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "EB1.png", "EB1_hole_.png", "EB1/hole_121.png", "EB1_well_25.png"} {
		if _, _, err := ParseSliceKey(in); err == nil {
			t.Fatalf("expected error for %q", in)
		}
	}
}

func TestArchiveRoundTrip(t *testing.T) {
	ctx := context.Background()
	archive := NewArchive(NewMemory())

	payload := []byte{0x89, 'P', 'N', 'G'}
	info, err := archive.PutSlice(ctx, "EB1", 25, "png", payload)
	if err != nil {
		t.Fatalf("PutSlice: %v", err)
	}
	if info.Key != "EB1/hole_25.png" || info.ContentType != "image/png" {
		t.Fatalf("info = %+v", info)
	}
	if info.Metadata["hole_number"] != "25" {
		t.Fatalf("metadata = %v", info.Metadata)
	}

	data, err := archive.GetSlice(ctx, "EB1", 25, "png")
	if err != nil {
		t.Fatalf("GetSlice: %v", err)
	}
	if string(data) != string(payload) {
		t.Fatalf("payload = %v", data)
	}

	// Create-only: writing the same well twice fails.
	if _, err := archive.PutSlice(ctx, "EB1", 25, "png", payload); err == nil {
		t.Fatal("duplicate slice accepted")
	}

	if _, err := archive.PutSlice(ctx, "EB1", 40, "jpg", payload); err != nil {
		t.Fatalf("PutSlice: %v", err)
	}
	if _, err := archive.PutSlice(ctx, "EB2", 25, "png", payload); err != nil {
		t.Fatalf("PutSlice: %v", err)
	}
	infos, err := archive.ListSpecimen(ctx, "EB1")
	if err != nil {
		t.Fatalf("ListSpecimen: %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("listed %d slices, want 2", len(infos))
	}
}

func TestArchiveGetMissing(t *testing.T) {
	archive := NewArchive(NewMemory())
	if _, err := archive.GetSlice(context.Background(), "EB1", 25, "png"); err == nil {
		t.Fatal("missing slice returned no error")
	}
}

func TestFilesystemStoreThroughArchive(t *testing.T) {
	store, err := NewFilesystem(t.TempDir())
	if err != nil {
		t.Fatalf("NewFilesystem: %v", err)
	}
	ctx := context.Background()
	archive := NewArchive(store)
	if _, err := archive.PutSlice(ctx, "EB1", 30, "png", []byte("slice")); err != nil {
		t.Fatalf("PutSlice: %v", err)
	}
	data, err := archive.GetSlice(ctx, "EB1", 30, "png")
	if err != nil {
		t.Fatalf("GetSlice: %v", err)
	}
	if string(data) != "slice" {
		t.Fatalf("payload = %q", data)
	}
	ok, err := store.Delete(ctx, "EB1/hole_30.png")
	if err != nil || !ok {
		t.Fatalf("Delete = (%v, %v)", ok, err)
	}
	if _, err := archive.GetSlice(ctx, "EB1", 30, "png"); err == nil {
		t.Fatal("deleted slice still readable")
	}
	if _, err := store.PresignURL(ctx, "EB1/hole_30.png", SignedURLOptions{Method: "PUT"}); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
}
