package ports

import (
	"context"
	"time"

	"github.com/alejandrodnm/swingbot/internal/domain"
)

// BarProvider fetches daily bar history from a market-data source.
type BarProvider interface {
	// FetchDailyBars returns the bars of symbol between from and to, oldest first.
	// An empty history is reported as domain.ErrInstrumentUnavailable.
	FetchDailyBars(ctx context.Context, symbol string, from, to time.Time) (domain.PriceSeries, error)
}
