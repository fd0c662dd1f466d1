package snapshot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/yndnr/canvasvault/internal/core/domain"
	"github.com/yndnr/canvasvault/internal/telemetry/metric"
)

// Progress receives human-readable status and a percentage in [0, 100].
// Percentages never decrease within one export or import.
type Progress func(message string, percent int)

func (p Progress) report(message string, percent int) {
	if p != nil {
		p(message, percent)
	}
}

// Source is the read side of the store used by Export.
type Source interface {
	ListKeys(ctx context.Context, c domain.Collection) ([]string, error)
	Get(ctx context.Context, c domain.Collection, id string) (domain.Record, error)
	GetOrDefault(ctx context.Context, c domain.Collection, id string) (domain.Record, error)
	GetImage(ctx context.Context, id string) (string, bool, error)
}

// Target is the write side of the store used by Import.
type Target interface {
	Clear(ctx context.Context, c domain.Collection) error
	Put(ctx context.Context, c domain.Collection, rec domain.Record) error
	SaveImage(ctx context.Context, id, data string) error
}

// Progress ranges.
const (
	exportNodesStart  = 0
	exportNodesEnd    = 50
	exportImagesEnd   = 95
	importClearDone   = 20
	importNodesEnd    = 70
	importImagesEnd   = 95
	progressCompleted = 100
)

// Codec converts between the store and snapshot documents.
type Codec struct {
	logger  *slog.Logger
	metrics *metric.Registry
	now     func() time.Time
}

// Option configures a Codec.
type Option func(*Codec)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Codec) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics sets the metrics registry.
func WithMetrics(r *metric.Registry) Option {
	return func(c *Codec) { c.metrics = r }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) { c.now = now }
}

// NewCodec creates a codec.
func NewCodec(opts ...Option) *Codec {
	c := &Codec{
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// scale maps step i of n onto (from, to].
func scale(i, n, from, to int) int {
	if n <= 0 {
		return to
	}
	return from + i*(to-from)/n
}

// Export reads every collection from src into a new document. It never
// writes to the store.
func (c *Codec) Export(ctx context.Context, src Source, state EditState, progress Progress) (doc *Document, err error) {
	start := time.Now()
	defer func() {
		c.metrics.ObserveSnapshot("export", time.Since(start), err)
		if err != nil {
			c.logger.Warn("snapshot export failed", "error", err)
		}
	}()

	progress.report("Preparing export", exportNodesStart)

	theme, err := src.GetOrDefault(ctx, domain.CollectionTheme, domain.ThemeID)
	if err != nil {
		return nil, fmt.Errorf("snapshot: export theme: %w", err)
	}

	doc = &Document{
		Version:   FormatVersion,
		Timestamp: c.now().UTC().Format(time.RFC3339),
		Data: Data{
			Nodes:              map[string]domain.Record{},
			Theme:              theme,
			Images:             map[string]string{},
			EditCounter:        state.EditCounter,
			LastBackupReminder: state.LastBackupReminder,
		},
	}

	nodeIDs, err := src.ListKeys(ctx, domain.CollectionNodes)
	if err != nil {
		return nil, fmt.Errorf("snapshot: list nodes: %w", err)
	}
	if len(nodeIDs) == 0 {
		progress.report("No nodes to export", exportNodesEnd)
	}
	for i, id := range nodeIDs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := src.Get(ctx, domain.CollectionNodes, id)
		if err != nil {
			return nil, fmt.Errorf("snapshot: export node %s: %w", id, err)
		}
		// Removed between listing and reading.
		if rec != nil {
			doc.Data.Nodes[id] = rec
		}
		progress.report(fmt.Sprintf("Exported node %d/%d", i+1, len(nodeIDs)),
			scale(i+1, len(nodeIDs), exportNodesStart, exportNodesEnd))
	}

	imageIDs, err := src.ListKeys(ctx, domain.CollectionImages)
	if err != nil {
		return nil, fmt.Errorf("snapshot: list images: %w", err)
	}
	if len(imageIDs) == 0 {
		progress.report("No images to export", exportImagesEnd)
	}
	for i, id := range imageIDs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, ok, err := src.GetImage(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("snapshot: export image %s: %w", id, err)
		}
		if ok {
			doc.Data.Images[id] = data
		}
		progress.report(fmt.Sprintf("Exported image %d/%d", i+1, len(imageIDs)),
			scale(i+1, len(imageIDs), exportNodesEnd, exportImagesEnd))
	}

	// The root always travels with a snapshot so the document can be
	// imported again.
	if _, ok := doc.Data.Nodes[domain.RootNodeID]; !ok {
		root, err := src.GetOrDefault(ctx, domain.CollectionNodes, domain.RootNodeID)
		if err != nil {
			return nil, fmt.Errorf("snapshot: export root: %w", err)
		}
		if root == nil {
			root, _ = domain.DefaultRecord(domain.CollectionNodes, domain.RootNodeID)
		}
		doc.Data.Nodes[domain.RootNodeID] = root
	}

	c.metrics.AddSnapshotRecords("export", string(domain.CollectionNodes), len(doc.Data.Nodes))
	c.metrics.AddSnapshotRecords("export", string(domain.CollectionImages), len(doc.Data.Images))
	c.logger.Info("snapshot exported",
		"nodes", len(doc.Data.Nodes),
		"images", len(doc.Data.Images),
		"elapsed", time.Since(start))

	progress.report("Export complete", progressCompleted)
	return doc, nil
}

// Import validates raw and replaces the nodes and images of dst with its
// contents. The theme is overwritten when the document carries one.
//
// Validation failures and cancellation before the clear leave dst
// untouched. Any failure after the clear is wrapped in
// domain.ErrPartialImport.
func (c *Codec) Import(ctx context.Context, raw []byte, dst Target, progress Progress) (state EditState, err error) {
	start := time.Now()
	defer func() {
		c.metrics.ObserveSnapshot("import", time.Since(start), err)
		if err != nil {
			c.logger.Warn("snapshot import failed", "error", err)
		}
	}()

	progress.report("Reading snapshot", 0)

	doc, err := Parse(raw)
	if err != nil {
		return EditState{}, err
	}
	if doc.Version != FormatVersion {
		c.logger.Warn("importing snapshot with different format version",
			"version", doc.Version,
			"expected", FormatVersion)
	}
	if err := ctx.Err(); err != nil {
		return EditState{}, err
	}

	progress.report("Clearing existing data", 10)

	partial := func(step string, cause error) error {
		return domain.ErrPartialImport.WithDetails(step).WithCause(cause)
	}

	for _, coll := range []domain.Collection{domain.CollectionNodes, domain.CollectionImages} {
		if err := dst.Clear(ctx, coll); err != nil {
			return EditState{}, partial("clear "+string(coll), err)
		}
	}
	progress.report("Cleared existing data", importClearDone)

	if doc.Data.Theme != nil {
		if err := dst.Put(ctx, domain.CollectionTheme, doc.Data.Theme); err != nil {
			return EditState{}, partial("write theme", err)
		}
	}

	nodeIDs := doc.NodeIDs()
	for i, id := range nodeIDs {
		if err := ctx.Err(); err != nil {
			return EditState{}, partial("write nodes", err)
		}
		if err := dst.Put(ctx, domain.CollectionNodes, doc.Data.Nodes[id]); err != nil {
			return EditState{}, partial("write node "+id, err)
		}
		progress.report(fmt.Sprintf("Imported node %d/%d", i+1, len(nodeIDs)),
			scale(i+1, len(nodeIDs), importClearDone, importNodesEnd))
	}

	imageIDs := doc.ImageIDs()
	if len(imageIDs) == 0 {
		progress.report("No images to import", importImagesEnd)
	}
	for i, id := range imageIDs {
		if err := ctx.Err(); err != nil {
			return EditState{}, partial("write images", err)
		}
		if err := dst.SaveImage(ctx, id, doc.Data.Images[id]); err != nil {
			return EditState{}, partial("write image "+id, err)
		}
		progress.report(fmt.Sprintf("Imported image %d/%d", i+1, len(imageIDs)),
			scale(i+1, len(imageIDs), importNodesEnd, importImagesEnd))
	}

	c.metrics.AddSnapshotRecords("import", string(domain.CollectionNodes), len(nodeIDs))
	c.metrics.AddSnapshotRecords("import", string(domain.CollectionImages), len(imageIDs))
	c.logger.Info("snapshot imported",
		"version", doc.Version,
		"nodes", len(nodeIDs),
		"images", len(imageIDs),
		"elapsed", time.Since(start))

	progress.report("Import complete", progressCompleted)
	return doc.EditState(), nil
}
