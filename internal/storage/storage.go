package storage

import (
	"context"

	"go.uber.org/zap"

	"stakeScope/internal/model"
)

// SnapshotSink persists delivered snapshots.
type SnapshotSink interface {
	PutSnapshots(ctx context.Context, snapshots []model.SyncSnapshot) error
}

// Recorder forwards every snapshot it receives to a set of sinks. Its Record
// method has the shape of a sync engine callback.
type Recorder struct {
	ctx    context.Context
	sinks  []SnapshotSink
	logger *zap.Logger
}

func NewRecorder(ctx context.Context, logger *zap.Logger, sinks ...SnapshotSink) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{ctx: ctx, sinks: sinks, logger: logger}
}

// Record writes snapshot to every sink. Sink errors are logged and do not stop
// the remaining sinks.
func (r *Recorder) Record(snapshot model.SyncSnapshot) {
	batch := []model.SyncSnapshot{snapshot}
	for _, sink := range r.sinks {
		if err := sink.PutSnapshots(r.ctx, batch); err != nil {
			r.logger.Warn("store snapshot failed", zap.Error(err), zap.Uint64("height", snapshot.Height))
		}
	}
}
