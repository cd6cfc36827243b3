package ports

import "github.com/alejandrodnm/swingbot/internal/domain"

// FeatureEngine augments a price series with named feature columns.
// Bars without a defined value for every column are dropped from the output.
type FeatureEngine interface {
	AddFeatures(series domain.PriceSeries) (domain.FeatureSeries, error)
}
