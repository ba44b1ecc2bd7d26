package blob

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"platecore/pkg/domain"
)

// Well slice images are stored under two historical layouts:
//
//	flat:   <specimenId>_hole_<wellIndex>.<ext>
//	nested: <specimenId>/hole_<wellIndex>.<ext>
//
// New writes use the nested layout; both parse.

var (
	flatSlicePattern   = regexp.MustCompile(`^(.+)_hole_(\d+)\.([A-Za-z0-9]+)$`)
	nestedSlicePattern = regexp.MustCompile(`^(.+)/hole_(\d+)\.([A-Za-z0-9]+)$`)
)

// SliceKey builds the nested-layout blob key for a well slice image.
func SliceKey(specimenID string, wellIndex int, ext string) (string, error) {
	if specimenID == "" {
		return "", domain.ValidationError{Field: "specimen id", Value: "", Reason: "must not be empty"}
	}
	if wellIndex < domain.MinWellIndex || wellIndex > domain.MaxWellIndex {
		return "", domain.RangeError{What: "well index", Got: wellIndex, Min: domain.MinWellIndex, Max: domain.MaxWellIndex}
	}
	ext = strings.TrimPrefix(ext, ".")
	if ext == "" {
		ext = "png"
	}
	return fmt.Sprintf("%s/hole_%d.%s", specimenID, wellIndex, ext), nil
}

// ParseSliceKey extracts the specimen id and well index from a slice key or
// filename in either layout.
func ParseSliceKey(key string) (specimenID string, wellIndex int, err error) {
	m := nestedSlicePattern.FindStringSubmatch(key)
	if m == nil {
		m = flatSlicePattern.FindStringSubmatch(key)
	}
	if m == nil {
		return "", 0, domain.FormatError{What: "slice key", Detail: fmt.Sprintf("%q matches neither layout", key)}
	}
	index, err := strconv.Atoi(m[2])
	if err != nil {
		return "", 0, domain.FormatError{What: "slice key", Detail: fmt.Sprintf("%q has a non-numeric well", key)}
	}
	if index < domain.MinWellIndex || index > domain.MaxWellIndex {
		return "", 0, domain.RangeError{What: "well index", Got: index, Min: domain.MinWellIndex, Max: domain.MaxWellIndex}
	}
	return m[1], index, nil
}

// Archive stores well slice images through a blob Store, keyed by specimen
// and well.
type Archive struct {
	store Store
}

// NewArchive wraps a blob store as a slice archive.
func NewArchive(store Store) *Archive { return &Archive{store: store} }

// Store exposes the underlying blob store.
func (a *Archive) Store() Store { return a.store }

// PutSlice stores one well slice image. Keys are create-only; re-cropping a
// well means deleting the old slice first.
func (a *Archive) PutSlice(ctx context.Context, specimenID string, wellIndex int, ext string, data []byte) (Info, error) {
	key, err := SliceKey(specimenID, wellIndex, ext)
	if err != nil {
		return Info{}, err
	}
	contentType := "image/png"
	if strings.EqualFold(strings.TrimPrefix(ext, "."), "jpg") || strings.EqualFold(strings.TrimPrefix(ext, "."), "jpeg") {
		contentType = "image/jpeg"
	}
	info, err := a.store.Put(ctx, key, bytes.NewReader(data), PutOptions{
		ContentType: contentType,
		Metadata: map[string]string{
			"specimen_id": specimenID,
			"hole_number": strconv.Itoa(wellIndex),
		},
	})
	if err != nil {
		return Info{}, domain.PersistenceError{Op: "put slice", Err: err}
	}
	return info, nil
}

// GetSlice reads one well slice image back.
func (a *Archive) GetSlice(ctx context.Context, specimenID string, wellIndex int, ext string) ([]byte, error) {
	key, err := SliceKey(specimenID, wellIndex, ext)
	if err != nil {
		return nil, err
	}
	_, rc, err := a.store.Get(ctx, key)
	if err != nil {
		return nil, domain.PersistenceError{Op: "get slice", Err: err}
	}
	defer func() { _ = rc.Close() }()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, domain.PersistenceError{Op: "read slice", Err: err}
	}
	return data, nil
}

// PutDocument stores a serialized JSON document under documents/<name>.json.
// Keys are create-only, so names must be unique per archive.
func (a *Archive) PutDocument(ctx context.Context, name string, data []byte) (Info, error) {
	if name == "" {
		return Info{}, domain.ValidationError{Field: "document name", Value: "", Reason: "must not be empty"}
	}
	key := "documents/" + name + ".json"
	info, err := a.store.Put(ctx, key, bytes.NewReader(data), PutOptions{ContentType: "application/json"})
	if err != nil {
		return Info{}, domain.PersistenceError{Op: "put document", Err: err}
	}
	return info, nil
}

// GetDocument reads a serialized document back by name.
func (a *Archive) GetDocument(ctx context.Context, name string) ([]byte, error) {
	key := "documents/" + name + ".json"
	_, rc, err := a.store.Get(ctx, key)
	if err != nil {
		return nil, domain.PersistenceError{Op: "get document", Err: err}
	}
	defer func() { _ = rc.Close() }()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, domain.PersistenceError{Op: "read document", Err: err}
	}
	return data, nil
}

// ListSpecimen returns the slice blobs stored for a specimen, sorted by
// well index.
func (a *Archive) ListSpecimen(ctx context.Context, specimenID string) ([]Info, error) {
	infos, err := a.store.List(ctx, specimenID+"/")
	if err != nil {
		return nil, domain.PersistenceError{Op: "list slices", Err: err}
	}
	return infos, nil
}
