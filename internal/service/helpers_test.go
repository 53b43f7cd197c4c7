package service

import (
	"context"
	"database/sql"
	"sync"

	"go.uber.org/mock/gomock"

	"github.com/target/esg-pipeline/internal/domain/model"
	"github.com/target/esg-pipeline/internal/mocks"
)

// expectTx makes tx run its callback with a nil *sql.Tx, the way a real
// transactor would with an open one. It returns the committed flag.
func expectTx(tx *mocks.MockTransactor) *bool {
	committed := new(bool)
	tx.EXPECT().WithTx(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, fn func(*sql.Tx) error) error {
			err := fn(nil)
			*committed = err == nil
			return err
		})
	return committed
}

// recordingBroadcaster captures published snapshots.
type recordingBroadcaster struct {
	mu      sync.Mutex
	updates []model.StatusUpdate
}

func (b *recordingBroadcaster) Publish(_ context.Context, u model.StatusUpdate) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.updates = append(b.updates, u)
}

func (b *recordingBroadcaster) Updates() []model.StatusUpdate {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]model.StatusUpdate(nil), b.updates...)
}

func strPtr(s string) *string { return &s }
