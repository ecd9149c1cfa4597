package index

import (
	"context"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/waypoint/internal/checksum"
	"github.com/starford/waypoint/internal/storage"
)

// Event kinds passed to EventCallback.
const (
	EventUpdated = "updated"
	EventDeleted = "deleted"
)

// EventCallback is called after a watcher-driven index change.
type EventCallback func(kind string, tripID string)

// Watch starts an fsnotify watcher on the data directory and processes
// document change events until ctx is cancelled. It calls cb (if non-nil)
// after each index mutation caused by an external edit.
//
// Documents whose checksum already matches the index are skipped, so writes
// made through the service (which indexes before the event arrives) do not
// produce a second notification. Rename events trigger a debounced
// reconciliation pass.
func Watch(ctx context.Context, db *DB, store *storage.FS, logger *slog.Logger, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(store.Root()); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", store.Root()))

	// reconcileTimer is used to debounce rename reconciliation.
	var reconcileTimer *time.Timer
	var reconcileCh <-chan time.Time

	scheduleReconcile := func() {
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(200 * time.Millisecond)
			reconcileCh = reconcileTimer.C
		} else {
			reconcileTimer.Reset(200 * time.Millisecond)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reconcileTimer != nil {
				reconcileTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-reconcileCh:
			reconcileAfterRename(db, store, logger, cb)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			id, isDoc := store.IDFromPath(ev.Name)
			if !isDoc {
				continue
			}

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				if reindex(db, store, id, logger) && cb != nil {
					cb(EventUpdated, id)
				}

			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				// fsnotify fires Rename on the OLD path only; the new path
				// arrives as a separate Create if it stays in the directory.
				if cs, _ := db.GetChecksum(id); cs == "" {
					continue
				}
				if delErr := db.DeleteTrip(id); delErr != nil {
					logger.Warn("watcher: delete failed", slog.String("trip_id", id), slog.String("error", delErr.Error()))
					continue
				}
				logger.Debug("watcher: deleted", slog.String("trip_id", id))
				if cb != nil {
					cb(EventDeleted, id)
				}
				if ev.Op&fsnotify.Rename != 0 {
					scheduleReconcile()
				}
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// reindex indexes the document of id when its content differs from the
// index. It reports whether the index changed.
func reindex(db *DB, store storage.Provider, id string, logger *slog.Logger) bool {
	data, err := store.Read(id)
	if err != nil {
		logger.Warn("watcher: read failed", slog.String("trip_id", id), slog.String("error", err.Error()))
		return false
	}
	if cs, _ := db.GetChecksum(id); cs == checksum.Sum(data) {
		return false
	}
	if _, err := IndexDocument(db, id, data); err != nil {
		logger.Warn("watcher: index failed", slog.String("trip_id", id), slog.String("error", err.Error()))
		return false
	}
	logger.Debug("watcher: indexed", slog.String("trip_id", id))
	return true
}

// reconcileAfterRename removes index entries without a document on disk and
// indexes documents that are missing or stale in the index.
func reconcileAfterRename(db *DB, store storage.Provider, logger *slog.Logger, cb EventCallback) {
	checksums, err := db.AllChecksums()
	if err != nil {
		logger.Warn("reconcile: all checksums failed", slog.String("error", err.Error()))
		return
	}

	metas, err := store.List()
	if err != nil {
		logger.Warn("reconcile: list failed", slog.String("error", err.Error()))
		return
	}

	disk := make(map[string]string, len(metas))
	for _, m := range metas {
		disk[m.ID] = m.Checksum
	}

	for id := range checksums {
		if _, ok := disk[id]; !ok {
			if delErr := db.DeleteTrip(id); delErr == nil {
				logger.Debug("reconcile: removed stale", slog.String("trip_id", id))
				if cb != nil {
					cb(EventDeleted, id)
				}
			}
		}
	}

	for id, cs := range disk {
		if checksums[id] == cs {
			continue
		}
		data, readErr := store.Read(id)
		if readErr != nil {
			continue
		}
		if _, idxErr := IndexDocument(db, id, data); idxErr == nil {
			logger.Debug("reconcile: indexed", slog.String("trip_id", id))
			if cb != nil {
				cb(EventUpdated, id)
			}
		}
	}
}
