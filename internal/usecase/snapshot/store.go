package snapshot

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	snapshotv1 "github.com/purplecity/PredictionMarket/internal/domain/snapshot/v1"
	"github.com/purplecity/PredictionMarket/pkg/errors"
	"github.com/purplecity/PredictionMarket/pkg/logger"
)

// FileStore persists snapshots as a JSON file. Writes go to a temp file that
// is fsynced and renamed over the previous snapshot, so a crash mid-write
// leaves the old snapshot intact.
type FileStore struct {
	path   string
	logger *logger.Logger
}

// NewFileStore builds a store writing to path.
func NewFileStore(path string, log *logger.Logger) *FileStore {
	return &FileStore{path: path, logger: log}
}

// Save writes the snapshot atomically.
func (s *FileStore) Save(ctx context.Context, snap *snapshotv1.AllOrdersSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return errors.NewTracer(errors.SnapshotMarshalError).Wrap(err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.NewTracer(errors.SnapshotWriteError).Wrap(err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return errors.NewTracer(errors.SnapshotWriteError).Wrap(err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.NewTracer(errors.SnapshotWriteError).Wrap(err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.NewTracer(errors.SnapshotWriteError).Wrap(err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.NewTracer(errors.SnapshotWriteError).Wrap(err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return errors.NewTracer(errors.SnapshotWriteError).Wrap(err)
	}

	s.logger.DebugContext(ctx, "snapshot saved",
		logger.Field{Key: "path", Value: s.path},
		logger.Field{Key: "orders", Value: len(snap.Orders)},
		logger.Field{Key: "order_cursor", Value: snap.OrderCursor},
		logger.Field{Key: "event_cursor", Value: snap.EventCursor},
	)
	return nil
}

// Load reads the last snapshot. A missing file means a fresh start and
// returns nil without error.
func (s *FileStore) Load(ctx context.Context) (*snapshotv1.AllOrdersSnapshot, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		s.logger.InfoContext(ctx, "no snapshot found, starting fresh",
			logger.Field{Key: "path", Value: s.path},
		)
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewTracer(errors.SnapshotReadError).Wrap(err)
	}

	var snap snapshotv1.AllOrdersSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, errors.NewTracer(errors.SnapshotUnmarshalError).Wrap(err)
	}

	s.logger.InfoContext(ctx, "snapshot loaded",
		logger.Field{Key: "path", Value: s.path},
		logger.Field{Key: "orders", Value: len(snap.Orders)},
		logger.Field{Key: "order_cursor", Value: snap.OrderCursor},
		logger.Field{Key: "event_cursor", Value: snap.EventCursor},
	)
	return &snap, nil
}
