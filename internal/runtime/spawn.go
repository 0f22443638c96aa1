package runtime

import (
	"context"

	"github.com/google/uuid"

	"github.com/linkmind-dev/linkmind/internal/models"
)

// Spawn enqueues a new task of kind on queue, generating its id. Returns
// the generated id so the caller can track or cancel it.
func Spawn(ctx context.Context, store TaskStore, queue, kind string, params any, opts models.SpawnOptions) (string, error) {
	id := uuid.NewString()
	if err := store.SpawnTask(ctx, id, queue, kind, params, opts); err != nil {
		return "", err
	}
	return id, nil
}
