package market

import (
	"context"
	"net/url"
	"strconv"
	"strings"
)

const (
	changeSuffix    = "_24h_change"
	marketCapSuffix = "_market_cap"
)

// SimplePrice returns live quotes for ids in every requested currency with
// one batched request.
//
// Ids the upstream does not know are absent from the result. If none of
// the ids come back the call fails with [ErrEmptyPayload].
func (c *Client) SimplePrice(ctx context.Context, ids, currencies []string) (map[string]Quote, error) {
	if len(ids) == 0 {
		return map[string]Quote{}, nil
	}

	query := url.Values{}
	query.Set("ids", strings.Join(ids, ","))
	query.Set("vs_currencies", strings.Join(currencies, ","))
	query.Set("include_24hr_change", "true")
	query.Set("include_market_cap", "true")

	// values may be null for thinly traded coins
	var raw map[string]map[string]*float64
	if err := c.get(ctx, "/simple/price", query, &raw); err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, ErrEmptyPayload
	}

	quotes := make(map[string]Quote, len(raw))
	for id, fields := range raw {
		quotes[id] = parseQuote(fields, currencies)
	}
	return quotes, nil
}

func parseQuote(fields map[string]*float64, currencies []string) Quote {
	q := Quote{
		Values:     make(map[string]float64, len(currencies)),
		MarketCaps: make(map[string]float64, len(currencies)),
		Changes:    make(map[string]float64, len(currencies)),
	}
	for _, cur := range currencies {
		if v := fields[cur]; v != nil {
			q.Values[cur] = *v
		}
		if v := fields[cur+marketCapSuffix]; v != nil {
			q.MarketCaps[cur] = *v
		}
		if v := fields[cur+changeSuffix]; v != nil {
			q.Changes[cur] = *v
		}
	}
	return q
}

// Markets returns the top coins by market cap priced in currency.
func (c *Client) Markets(ctx context.Context, currency string, perPage int) ([]Coin, error) {
	query := url.Values{}
	query.Set("vs_currency", currency)
	query.Set("order", "market_cap_desc")
	query.Set("per_page", strconv.Itoa(perPage))
	query.Set("page", "1")
	query.Set("sparkline", "false")

	var coins []Coin
	if err := c.get(ctx, "/coins/markets", query, &coins); err != nil {
		return nil, err
	}
	return coins, nil
}
