// Package worker mirrors stored entries into the spreadsheet.
package worker

import (
	"context"
	"errors"
	"fmt"

	"wallet/internal/amqp"
	"wallet/internal/core"
	"wallet/internal/log"
	"wallet/internal/sheets"
	"wallet/internal/storage"
	"wallet/internal/store"
)

// SyncStore is the slice of the SQLite repository the worker needs.
type SyncStore interface {
	Get(ctx context.Context, v core.Variant, id int64) (core.Entry, error)
	PendingSync(ctx context.Context, limit int) ([]storage.PendingEntry, error)
	MarkSynced(ctx context.Context, v core.Variant, id int64) error
	MarkSyncError(ctx context.Context, v core.Variant, id int64) error
}

// SyncWorker appends entries to the spreadsheet and records the outcome on
// the entry's sync status.
type SyncWorker struct {
	storage   SyncStore
	sheets    sheets.RowWriter
	batchSize int
	logger    *log.Logger
}

func NewSyncWorker(st SyncStore, w sheets.RowWriter, batchSize int) *SyncWorker {
	if batchSize <= 0 {
		batchSize = 50
	}
	return &SyncWorker{
		storage:   st,
		sheets:    w,
		batchSize: batchSize,
		logger:    log.NewComponentLogger(log.ComponentWorker),
	}
}

// HandleSyncMessage processes one sync message from the queue. An entry
// that no longer exists is dropped so the message is not redelivered
// forever.
func (w *SyncWorker) HandleSyncMessage(ctx context.Context, msg *amqp.EntrySyncMessage) error {
	w.logger.InfoContext(ctx, "Processing sync message",
		log.FieldEntryVariant, msg.Variant,
		log.FieldEntryID, msg.ID,
		"version", msg.Version)

	e, err := w.storage.Get(ctx, msg.Variant, msg.ID)
	if errors.Is(err, store.ErrNotFound) {
		w.logger.WarnContext(ctx, "Skipping sync of missing entry",
			log.FieldEntryVariant, msg.Variant, log.FieldEntryID, msg.ID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get entry from storage: %w", err)
	}
	return w.sync(ctx, e)
}

// ProcessPending syncs one batch of entries still marked pending. It backs
// up the queue when messages were lost.
func (w *SyncWorker) ProcessPending(ctx context.Context) error {
	_, _, err := w.processBatch(ctx, w.batchSize)
	return err
}

// StartupSyncCheck drains a larger batch when the worker starts, to catch up
// on downtime.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	synced, failed, err := w.processBatch(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("startup sync check: %w", err)
	}
	if synced+failed == 0 {
		w.logger.InfoContext(ctx, "No pending entries found on startup")
		return nil
	}
	w.logger.InfoContext(ctx, "Startup sync completed",
		"total", synced+failed,
		"synced", synced,
		"errors", failed)
	return nil
}

func (w *SyncWorker) processBatch(ctx context.Context, limit int) (synced, failed int, err error) {
	pending, err := w.storage.PendingSync(ctx, limit)
	if err != nil {
		return 0, 0, fmt.Errorf("get pending entries: %w", err)
	}
	if len(pending) == 0 {
		return 0, 0, nil
	}
	w.logger.InfoContext(ctx, "Processing pending entries", "count", len(pending))

	for _, p := range pending {
		if ctx.Err() != nil {
			return synced, failed, ctx.Err()
		}
		e, err := w.storage.Get(ctx, p.Variant, p.ID)
		if err != nil {
			w.logger.ErrorContext(ctx, "Failed to get entry",
				log.FieldEntryVariant, p.Variant, log.FieldEntryID, p.ID, log.FieldError, err)
			w.markError(ctx, p.Variant, p.ID)
			failed++
			continue
		}
		if err := w.sync(ctx, e); err != nil {
			w.logger.ErrorContext(ctx, "Failed to sync entry",
				log.FieldEntryVariant, p.Variant, log.FieldEntryID, p.ID, log.FieldError, err)
			failed++
			continue
		}
		synced++
	}
	return synced, failed, nil
}

func (w *SyncWorker) sync(ctx context.Context, e core.Entry) error {
	ref, err := w.sheets.AppendEntry(ctx, e)
	if err != nil {
		w.markError(ctx, e.Variant, e.ID)
		return fmt.Errorf("append to sheets: %w", err)
	}

	// the row is written; a failed status update only means a harmless
	// re-append attempt later, which the sheet deduplicates by id
	if err := w.storage.MarkSynced(ctx, e.Variant, e.ID); err != nil {
		w.logger.ErrorContext(ctx, "Failed to mark as synced",
			log.FieldEntryVariant, e.Variant, log.FieldEntryID, e.ID, log.FieldError, err)
	}

	w.logger.InfoContext(ctx, "Successfully synced entry",
		log.FieldEntryVariant, e.Variant,
		log.FieldEntryID, e.ID,
		log.FieldSheetsRef, ref,
		log.FieldAmountCents, e.Amount.Cents)
	return nil
}

func (w *SyncWorker) markError(ctx context.Context, v core.Variant, id int64) {
	if err := w.storage.MarkSyncError(ctx, v, id); err != nil {
		w.logger.ErrorContext(ctx, "Failed to mark sync error",
			log.FieldEntryVariant, v, log.FieldEntryID, id, log.FieldError, err)
	}
}
