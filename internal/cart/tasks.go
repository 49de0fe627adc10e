package cart

import (
	"context"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
)

// TaskPurge deletes expired carts. The worker schedules it periodically.
const TaskPurge = "cart:purge"

// PurgeHandler processes TaskPurge.
type PurgeHandler struct {
	Svc    *Service
	Logger zerolog.Logger
}

// ProcessTask implements asynq.Handler.
func (h PurgeHandler) ProcessTask(ctx context.Context, _ *asynq.Task) error {
	n, err := h.Svc.PurgeExpired(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		h.Logger.Info().Int64("count", n).Msg("purged expired carts")
	}
	return nil
}
