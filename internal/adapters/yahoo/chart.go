package yahoo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"time"

	"github.com/alejandrodnm/swingbot/internal/domain"
)

// chartResponse is the payload of /v8/finance/chart. Prices are pointers
// because Yahoo reports holidays and halted sessions as nulls.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol    string `json:"symbol"`
				Currency  string `json:"currency"`
				GMTOffset int64  `json:"gmtoffset"`
				Timezone  string `json:"exchangeTimezoneName"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// FetchDailyBars returns the daily bars of symbol whose session date is between
// from and to, both inclusive. It implements ports.BarProvider.
//
// Bar dates are midnight UTC of the exchange session date, so they compare
// cleanly against calendar-day boundaries.
func (c *Client) FetchDailyBars(ctx context.Context, symbol string, from, to time.Time) (domain.PriceSeries, error) {
	q := url.Values{}
	q.Set("interval", "1d")
	q.Set("events", "history")
	q.Set("period1", fmt.Sprint(day(from).Unix()))
	q.Set("period2", fmt.Sprint(day(to).AddDate(0, 0, 1).Unix()))
	u := fmt.Sprintf("%s/v8/finance/chart/%s?%s", c.base, url.PathEscape(symbol), q.Encode())

	var resp chartResponse
	if err := c.get(ctx, u, &resp); err != nil {
		if errors.Is(err, errNotFound) {
			return domain.PriceSeries{}, fmt.Errorf("yahoo.FetchDailyBars: %s: %w", symbol, domain.ErrInstrumentUnavailable)
		}
		return domain.PriceSeries{}, fmt.Errorf("yahoo.FetchDailyBars: %s: %w", symbol, err)
	}
	if e := resp.Chart.Error; e != nil {
		return domain.PriceSeries{}, fmt.Errorf("yahoo.FetchDailyBars: %s: %s: %w", symbol, e.Description, domain.ErrInstrumentUnavailable)
	}
	if len(resp.Chart.Result) == 0 || len(resp.Chart.Result[0].Indicators.Quote) == 0 {
		return domain.PriceSeries{}, fmt.Errorf("yahoo.FetchDailyBars: %s: %w", symbol, domain.ErrInstrumentUnavailable)
	}

	result := resp.Chart.Result[0]
	bars := toBars(result.Timestamp, result.Meta.GMTOffset, result.Indicators.Quote[0].Open,
		result.Indicators.Quote[0].High, result.Indicators.Quote[0].Low,
		result.Indicators.Quote[0].Close, result.Indicators.Quote[0].Volume)

	lo, hi := day(from), day(to)
	kept := bars[:0]
	for _, b := range bars {
		if b.Date.Before(lo) || b.Date.After(hi) {
			continue
		}
		kept = append(kept, b)
	}
	if len(kept) == 0 {
		return domain.PriceSeries{}, fmt.Errorf("yahoo.FetchDailyBars: %s: no bars between %s and %s: %w",
			symbol, lo.Format(time.DateOnly), hi.Format(time.DateOnly), domain.ErrInstrumentUnavailable)
	}

	slog.Debug("bars fetched",
		"symbol", symbol,
		"bars", len(kept),
		"first", kept[0].Date.Format(time.DateOnly),
		"last", kept[len(kept)-1].Date.Format(time.DateOnly),
	)
	return domain.PriceSeries{Symbol: symbol, Bars: kept}, nil
}

// toBars converts the parallel quote arrays into bars sorted by date, one per
// session. Rows with a missing or non-positive price are dropped; when a
// session appears twice the later row wins.
func toBars(ts []int64, gmtOffset int64, open, high, low, closes, volume []*float64) []domain.PriceBar {
	at := func(v []*float64, i int) (float64, bool) {
		if i >= len(v) || v[i] == nil {
			return 0, false
		}
		return *v[i], true
	}

	byDate := make(map[time.Time]domain.PriceBar, len(ts))
	for i, t := range ts {
		o, ok1 := at(open, i)
		h, ok2 := at(high, i)
		l, ok3 := at(low, i)
		c, ok4 := at(closes, i)
		if !ok1 || !ok2 || !ok3 || !ok4 || o <= 0 || h <= 0 || l <= 0 || c <= 0 {
			continue
		}
		v, _ := at(volume, i)
		date := day(time.Unix(t+gmtOffset, 0))
		byDate[date] = domain.PriceBar{Date: date, Open: o, High: h, Low: l, Close: c, Volume: v}
	}

	bars := make([]domain.PriceBar, 0, len(byDate))
	for _, b := range byDate {
		bars = append(bars, b)
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
	return bars
}

// day truncates t to midnight UTC of its calendar date.
func day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
