package ports

import (
	"context"

	"github.com/alejandrodnm/swingbot/internal/domain"
)

// Notifier presents live signals to the user.
type Notifier interface {
	NotifySignals(ctx context.Context, signals []domain.Signal, skipped []domain.Skip) error
}
