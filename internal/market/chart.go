package market

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"time"
)

// ErrInvalidRange is returned for chart ranges other than [ValidDays].
var ErrInvalidRange = errors.New("days must be 1, 7 or 30")

// ValidDays lists the chart ranges the dashboard offers.
var ValidDays = []int{1, 7, 30}

// ValidRange reports whether days is one of [ValidDays].
func ValidRange(days int) bool {
	for _, d := range ValidDays {
		if d == days {
			return true
		}
	}
	return false
}

// MarketChart returns the price history of id over the last days days.
//
// Samples with a null price are dropped. A series with no remaining
// samples fails with [ErrEmptyPayload].
func (c *Client) MarketChart(ctx context.Context, id, currency string, days int) ([]PricePoint, error) {
	if !ValidRange(days) {
		return nil, ErrInvalidRange
	}

	query := url.Values{}
	query.Set("vs_currency", currency)
	query.Set("days", strconv.Itoa(days))

	var raw struct {
		Prices [][2]*float64 `json:"prices"`
	}
	if err := c.get(ctx, "/coins/"+url.PathEscape(id)+"/market_chart", query, &raw); err != nil {
		return nil, err
	}

	points := make([]PricePoint, 0, len(raw.Prices))
	for _, sample := range raw.Prices {
		if sample[0] == nil || sample[1] == nil {
			continue
		}
		points = append(points, PricePoint{
			Time:  time.UnixMilli(int64(*sample[0])).UTC(),
			Price: *sample[1],
		})
	}
	if len(points) == 0 {
		return nil, ErrEmptyPayload
	}
	return points, nil
}

// Trend reports whether the series closed at or above where it opened.
// An empty series is not up.
func Trend(points []PricePoint) bool {
	if len(points) == 0 {
		return false
	}
	return points[len(points)-1].Price >= points[0].Price
}
