package integration

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"platecore/internal/blob"
	"platecore/internal/core"
	"platecore/internal/dataset"
	"platecore/internal/infra/persistence/sqlite"
	"platecore/pkg/domain"
	"platecore/pkg/grid"
)

// TestIntegrationSmoke exercises a minimal end-to-end annotate/import/save
// cycle for each supported in-process storage and blob adapter. It
// intentionally keeps scope tiny so it can act as a fast CI health check.
func TestIntegrationSmoke(t *testing.T) {
	ctx := context.Background()

	layout, err := grid.NewLayout(grid.DefaultConfig())
	if err != nil {
		t.Fatalf("new layout: %v", err)
	}
	result := strings.Repeat("-", 24) + "+" + strings.Repeat("-", 95)

	storeVariants := []struct {
		name string
		open func(t *testing.T) core.Datastore
	}{
		{
			name: "memory-store",
			open: func(_ *testing.T) core.Datastore { return dataset.NewStore() },
		},
		{
			name: "sqlite-store",
			open: func(t *testing.T) core.Datastore {
				path := filepath.Join(t.TempDir(), "plate.db")
				s, err := sqlite.NewStore(path)
				if err != nil {
					t.Fatalf("new sqlite store: %v", err)
				}
				t.Cleanup(func() { _ = s.Close() })
				return s
			},
		},
	}

	blobVariants := []struct {
		name string
		open func(t *testing.T) blob.Store
	}{
		{
			name: "memory-blob",
			open: func(_ *testing.T) blob.Store { return blob.NewMemory() },
		},
		{
			name: "filesystem-blob",
			open: func(t *testing.T) blob.Store {
				fs, err := blob.NewFilesystem(t.TempDir())
				if err != nil {
					t.Fatalf("new filesystem blob: %v", err)
				}
				return fs
			},
		},
	}

	for _, sv := range storeVariants {
		t.Run(sv.name, func(t *testing.T) {
			store := sv.open(t)
			metricsRecorder := core.NewExpvarMetricsRecorder("")
			var traceBuffer bytes.Buffer
			tracer := core.NewJSONTracer(&traceBuffer)
			svc := core.NewService(store, layout,
				core.WithMetricsRecorder(metricsRecorder),
				core.WithTracer(tracer),
			)

			applied, err := svc.ImportPreliminary(ctx, "EB1", domain.MicrobeBacteria, result)
			if err != nil {
				t.Fatalf("import preliminary: %v", err)
			}
			if applied != 120 {
				t.Fatalf("expected 120 imported wells, got %d", applied)
			}

			fc, err := domain.NewFeatureCombination(domain.GrowthPositive, domain.PatternClustered, nil, 0.95, domain.MicrobeBacteria)
			if err != nil {
				t.Fatalf("new feature combination: %v", err)
			}
			rec, err := svc.AnnotateEnhanced(ctx, "EB1", 25, domain.MicrobeBacteria, fc, true)
			if err != nil {
				t.Fatalf("annotate enhanced: %v", err)
			}
			if rec.Label != "positive_clustered" {
				t.Fatalf("unexpected enhanced label %q", rec.Label)
			}

			data, err := svc.SaveDocument(ctx, "smoke", "", dataset.SaveAll)
			if err != nil {
				t.Fatalf("save document: %v", err)
			}
			doc, err := svc.LoadDocument(ctx, data)
			if err != nil {
				t.Fatalf("load document: %v", err)
			}
			if doc.SavedAnnotations != 120 {
				t.Fatalf("expected 120 saved annotations, got %d", doc.SavedAnnotations)
			}
			if got, err := svc.Record(ctx, "EB1", 25); err != nil || got.GrowthLevel != domain.GrowthPositive {
				t.Fatalf("record after reload: rec=%+v err=%v", got, err)
			}

			snapshot := metricsRecorder.Snapshot()
			if len(snapshot.DurationsMS) == 0 {
				t.Fatalf("expected metrics durations for operations, got empty")
			}
			if snapshot.Results["import_preliminary"]["success"] == 0 {
				t.Fatalf("expected import_preliminary success metric recorded: %+v", snapshot.Results)
			}
			if traceBuffer.Len() == 0 {
				t.Fatalf("expected trace exporter to emit spans")
			}
			var foundSpan bool
			for _, entry := range tracer.Entries() {
				if entry.Operation == "import_preliminary" && entry.Status == "success" {
					foundSpan = true
					break
				}
			}
			if !foundSpan {
				t.Fatalf("expected trace entry for import_preliminary, entries=%+v", tracer.Entries())
			}
		})
	}

	for _, bv := range blobVariants {
		t.Run(bv.name, func(t *testing.T) {
			archive := blob.NewArchive(bv.open(t))
			svc := core.NewService(dataset.NewStore(), layout, core.WithArchive(archive))

			payload := []byte("slice-bytes")
			info, err := svc.SaveSlice(ctx, "EB1", 25, "png", payload)
			if err != nil {
				t.Fatalf("save slice: %v", err)
			}
			if info.Key != "EB1/hole_25.png" {
				t.Fatalf("unexpected slice key %q", info.Key)
			}
			got, err := svc.LoadSlice(ctx, "EB1", 25, "png")
			if err != nil {
				t.Fatalf("load slice: %v", err)
			}
			if !bytes.Equal(got, payload) {
				t.Fatalf("slice payload mismatch got=%q want=%q", got, payload)
			}
			infos, err := archive.ListSpecimen(ctx, "EB1")
			if err != nil || len(infos) != 1 {
				t.Fatalf("list specimen: infos=%+v err=%v", infos, err)
			}
			_, rc, err := archive.Store().Get(ctx, info.Key)
			if err != nil {
				t.Fatalf("raw get: %v", err)
			}
			raw, err := io.ReadAll(rc)
			_ = rc.Close()
			if err != nil || !bytes.Equal(raw, payload) {
				t.Fatalf("raw payload mismatch: %v", err)
			}
		})
	}

	// Guard against env leakage between variants.
	if os.Getenv("PLATECORE_BLOB_DRIVER") != "" || os.Getenv("PLATECORE_BLOB_S3_BUCKET") != "" {
		t.Fatalf("expected no test-induced env leakage")
	}
}
