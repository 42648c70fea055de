package reconcile

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Pager is implemented by remotes that can list records ordered by id.
type Pager interface {
	// PageRecords returns up to limit records with an id greater than afterID, ascending.
	PageRecords(ctx context.Context, recordType, afterID string, limit int) ([]RemoteRecord, error)
}

// ImportResult summarizes a bulk import.
type ImportResult struct {
	Imported int    `json:"imported"`
	LastID   string `json:"last_id,omitempty"`
}

// Importer copies every remote record of a type into the local store.
type Importer struct {
	pager   Pager
	inbound *Inbound
	mapping *Mapping
	logger  *zap.Logger
}

// NewImporter creates an importer. hook may be nil.
func NewImporter(pager Pager, store LocalStore, mapping *Mapping, hook EventHook, logger *zap.Logger) *Importer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Importer{pager: pager, inbound: NewInbound(store, mapping, hook), mapping: mapping, logger: logger}
}

// Import pages through remote records after afterID and writes them locally.
// Existing local records are overwritten.
func (im *Importer) Import(ctx context.Context, afterID string, batchSize int) (ImportResult, error) {
	if batchSize <= 0 {
		batchSize = 500
	}
	res := ImportResult{LastID: afterID}
	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		page, err := im.pager.PageRecords(ctx, im.mapping.RecordType, res.LastID, batchSize)
		if err != nil {
			return res, fmt.Errorf("failed to page %s after %q: %w", im.mapping.RecordType, res.LastID, err)
		}
		if len(page) == 0 {
			break
		}
		for i := range page {
			if _, err := im.inbound.Force(ctx, withID(&page[i], im.mapping), false); err != nil {
				return res, err
			}
			res.Imported++
			res.LastID = page[i].ID
		}
		im.logger.Info("Imported batch",
			zap.String("record_type", im.mapping.RecordType),
			zap.Int("imported", res.Imported),
			zap.String("last_id", res.LastID),
		)
		if len(page) < batchSize {
			break
		}
	}
	return res, nil
}
