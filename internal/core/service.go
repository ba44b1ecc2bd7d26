// Package core exposes the annotation service: the transactional-feeling
// façade the CLI and any embedding UI drive, instrumented with metrics,
// tracing, and logging.
package core

import (
	"context"
	"encoding/json"
	"time"

	"platecore/internal/blob"
	"platecore/internal/dataset"
	"platecore/internal/resultcode"
	"platecore/pkg/domain"
	"platecore/pkg/grid"
)

// Datastore is the slice of annotation store behavior the service drives.
// *dataset.Store satisfies it directly; persistence-backed stores wrap the
// mutating methods to write through after each successful change.
type Datastore interface {
	Upsert(rec domain.AnnotationRecord) error
	ImportIfAbsent(records []domain.AnnotationRecord) (int, error)
	ByWell(specimenID string, wellIndex int) (domain.AnnotationRecord, bool)
	BySpecimen(specimenID string) []domain.AnnotationRecord
	Len() int
	StatisticsFor(specimenID string, expectedTotal int) dataset.Statistics
	Snapshot(name, description string, mode dataset.SaveMode, now time.Time) (dataset.Document, error)
	Load(doc dataset.Document) error
	TrainingExport() dataset.TrainingSummary
}

// Service wraps the annotation store and layout behind instrumented
// operations. In-memory state is never left half-updated: operations either
// complete or return a typed error with the store unchanged.
type Service struct {
	store   Datastore
	layout  grid.Layout
	archive *blob.Archive
	metrics MetricsRecorder
	tracer  Tracer
	logger  Logger
	now     func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithMetricsRecorder attaches a metrics recorder.
func WithMetricsRecorder(m MetricsRecorder) Option {
	return func(s *Service) { s.metrics = m }
}

// WithTracer attaches a tracer.
func WithTracer(t Tracer) Option {
	return func(s *Service) { s.tracer = t }
}

// WithLogger attaches a logger.
func WithLogger(l Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithArchive attaches a slice image archive.
func WithArchive(a *blob.Archive) Option {
	return func(s *Service) { s.archive = a }
}

// WithClock overrides time.Now, for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService constructs a service over the given store and layout.
func NewService(store Datastore, layout grid.Layout, opts ...Option) *Service {
	s := &Service{
		store:  store,
		layout: layout,
		logger: noopLogger{},
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store returns the underlying annotation store.
func (s *Service) Store() Datastore { return s.store }

// Layout returns the plate layout the service navigates.
func (s *Service) Layout() grid.Layout { return s.layout }

// run instruments one operation with the configured tracer and metrics.
func (s *Service) run(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	var span TraceSpan
	if s.tracer != nil {
		ctx, span = s.tracer.Start(ctx, operation)
	}
	start := s.now()
	err := fn(ctx)
	if span != nil {
		span.End(err)
	}
	s.observe(ctx, operation, err, s.now().Sub(start))
	return err
}

func (s *Service) observe(ctx context.Context, operation string, err error, elapsed time.Duration) {
	if s.metrics != nil {
		s.metrics.Observe(ctx, operation, err == nil, elapsed)
	}
	if err != nil {
		s.logger.Errorf("%s: %v", operation, err)
	}
}

// Annotate stores a manual annotation at its key, stamping the current
// time.
func (s *Service) Annotate(ctx context.Context, rec domain.AnnotationRecord) error {
	return s.run(ctx, "annotate", func(context.Context) error {
		rec.Timestamp = s.now().UTC()
		return s.store.Upsert(rec)
	})
}

// AnnotateEnhanced applies an enhanced feature combination to a well,
// creating the base record when none exists yet. The stored record's
// derived fields are synced from the combination.
func (s *Service) AnnotateEnhanced(ctx context.Context, specimenID string, wellIndex int, microbe domain.MicrobeType, fc domain.FeatureCombination, confirmed bool) (domain.AnnotationRecord, error) {
	var out domain.AnnotationRecord
	err := s.run(ctx, "annotate_enhanced", func(context.Context) error {
		rec, ok := s.store.ByWell(specimenID, wellIndex)
		if !ok {
			var err error
			rec, err = domain.NewAnnotationRecord(specimenID, wellIndex, microbe, fc.GrowthLevel, domain.SourceEnhancedManual)
			if err != nil {
				return err
			}
		}
		enhanced, err := rec.WithEnhanced(fc, confirmed)
		if err != nil {
			return err
		}
		enhanced.Timestamp = s.now().UTC()
		if err := s.store.Upsert(enhanced); err != nil {
			return err
		}
		out = enhanced
		return nil
	})
	return out, err
}

// ImportPreliminary decodes a preliminary result string and applies it
// under import-if-absent policy. The returned count is the number of wells
// actually filled; wells already annotated are untouched.
func (s *Service) ImportPreliminary(ctx context.Context, specimenID string, microbe domain.MicrobeType, raw string) (int, error) {
	applied := 0
	err := s.run(ctx, "import_preliminary", func(context.Context) error {
		records, err := resultcode.DecodeRecords(specimenID, microbe, raw)
		if err != nil {
			return err
		}
		now := s.now().UTC()
		for i := range records {
			records[i].Timestamp = now
		}
		applied, err = s.store.ImportIfAbsent(records)
		if err != nil {
			return err
		}
		s.logger.Infof("imported %d preliminary results for %s", applied, specimenID)
		return nil
	})
	return applied, err
}

// ExportPreliminary renders the specimen's current growth levels back to
// the compact 120-character format. Unannotated wells export as negative.
func (s *Service) ExportPreliminary(ctx context.Context, specimenID string) (string, error) {
	var encoded string
	err := s.run(ctx, "export_preliminary", func(context.Context) error {
		levels := make(map[int]domain.GrowthLevel)
		for _, rec := range s.store.BySpecimen(specimenID) {
			levels[rec.WellIndex] = rec.GrowthLevel
		}
		var err error
		encoded, err = resultcode.Encode(levels)
		return err
	})
	return encoded, err
}

// Record returns the annotation at a well.
func (s *Service) Record(ctx context.Context, specimenID string, wellIndex int) (domain.AnnotationRecord, error) {
	var out domain.AnnotationRecord
	err := s.run(ctx, "record", func(context.Context) error {
		rec, ok := s.store.ByWell(specimenID, wellIndex)
		if !ok {
			label, lerr := domain.WellLabel(wellIndex)
			if lerr != nil {
				return lerr
			}
			return domain.NotFoundError{Kind: "annotation", Key: specimenID + "/" + label}
		}
		out = rec
		return nil
	})
	return out, err
}

// Statistics summarizes one specimen, or all specimens when id is empty.
func (s *Service) Statistics(ctx context.Context, specimenID string, expectedTotal int) (dataset.Statistics, error) {
	var out dataset.Statistics
	err := s.run(ctx, "statistics", func(context.Context) error {
		out = s.store.StatisticsFor(specimenID, expectedTotal)
		return nil
	})
	return out, err
}

// SaveDocument snapshots the store under the given save mode and returns
// the serialized document.
func (s *Service) SaveDocument(ctx context.Context, name, description string, mode dataset.SaveMode) ([]byte, error) {
	var data []byte
	err := s.run(ctx, "save_document", func(context.Context) error {
		doc, err := s.store.Snapshot(name, description, mode, s.now())
		if err != nil {
			return err
		}
		data, err = dataset.MarshalDocument(doc)
		return err
	})
	return data, err
}

// LoadDocument replaces the store contents from a serialized document. On
// failure the in-memory store is unaffected.
func (s *Service) LoadDocument(ctx context.Context, data []byte) (dataset.Document, error) {
	var doc dataset.Document
	err := s.run(ctx, "load_document", func(context.Context) error {
		var err error
		doc, err = dataset.UnmarshalDocument(data)
		if err != nil {
			return err
		}
		return s.store.Load(doc)
	})
	return doc, err
}

// ArchiveDocument snapshots the store and writes the serialized document
// into the blob archive under the given name.
func (s *Service) ArchiveDocument(ctx context.Context, name, description string, mode dataset.SaveMode) (blob.Info, error) {
	var info blob.Info
	err := s.run(ctx, "archive_document", func(ctx context.Context) error {
		if s.archive == nil {
			return domain.PersistenceError{Op: "archive document", Err: blob.ErrUnsupported}
		}
		doc, err := s.store.Snapshot(name, description, mode, s.now())
		if err != nil {
			return err
		}
		data, err := dataset.MarshalDocument(doc)
		if err != nil {
			return err
		}
		info, err = s.archive.PutDocument(ctx, name, data)
		return err
	})
	return info, err
}

// RestoreDocument loads a previously archived document back into the store.
func (s *Service) RestoreDocument(ctx context.Context, name string) (dataset.Document, error) {
	var doc dataset.Document
	err := s.run(ctx, "restore_document", func(ctx context.Context) error {
		if s.archive == nil {
			return domain.PersistenceError{Op: "restore document", Err: blob.ErrUnsupported}
		}
		data, err := s.archive.GetDocument(ctx, name)
		if err != nil {
			return err
		}
		doc, err = dataset.UnmarshalDocument(data)
		if err != nil {
			return err
		}
		return s.store.Load(doc)
	})
	return doc, err
}

// PublishTrainingSummary writes the training-export summary through the blob
// archive as a JSON document named training_<name>.
func (s *Service) PublishTrainingSummary(ctx context.Context, name string) (blob.Info, error) {
	var info blob.Info
	err := s.run(ctx, "publish_training_summary", func(ctx context.Context) error {
		if s.archive == nil {
			return domain.PersistenceError{Op: "publish training summary", Err: blob.ErrUnsupported}
		}
		summary := s.store.TrainingExport()
		data, err := json.MarshalIndent(summary, "", "  ")
		if err != nil {
			return domain.PersistenceError{Op: "encode training summary", Err: err}
		}
		info, err = s.archive.PutDocument(ctx, "training_"+name, data)
		return err
	})
	return info, err
}

// TrainingExport summarizes the confirmed-enhanced subset per training
// bucket.
func (s *Service) TrainingExport(ctx context.Context) (dataset.TrainingSummary, error) {
	var out dataset.TrainingSummary
	err := s.run(ctx, "training_export", func(context.Context) error {
		out = s.store.TrainingExport()
		return nil
	})
	return out, err
}

// SaveSlice archives a well slice image alongside its annotation.
func (s *Service) SaveSlice(ctx context.Context, specimenID string, wellIndex int, ext string, data []byte) (blob.Info, error) {
	var info blob.Info
	err := s.run(ctx, "save_slice", func(ctx context.Context) error {
		if s.archive == nil {
			return domain.PersistenceError{Op: "save slice", Err: blob.ErrUnsupported}
		}
		var err error
		info, err = s.archive.PutSlice(ctx, specimenID, wellIndex, ext, data)
		return err
	})
	return info, err
}

// LoadSlice reads a well slice image back from the archive.
func (s *Service) LoadSlice(ctx context.Context, specimenID string, wellIndex int, ext string) ([]byte, error) {
	var data []byte
	err := s.run(ctx, "load_slice", func(ctx context.Context) error {
		if s.archive == nil {
			return domain.PersistenceError{Op: "load slice", Err: blob.ErrUnsupported}
		}
		var err error
		data, err = s.archive.GetSlice(ctx, specimenID, wellIndex, ext)
		return err
	})
	return data, err
}
