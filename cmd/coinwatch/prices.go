package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/jpalmerr/coinwatch/config"
	"github.com/jpalmerr/coinwatch/internal/market"
	"github.com/jpalmerr/coinwatch/internal/portfolio"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

const (
	defaultPricesLimit = 20
	maxPricesLimit     = 250
	pricesTimeout      = 15 * time.Second
	tableWordWrap      = 120
)

// pricesCmd prints the top coins by market cap.
var pricesCmd = &cobra.Command{
	Use:   "prices",
	Short: "Print the top coins by market cap",
	Long: `Print the top coins by market cap as a table in the terminal.

The table is rendered from markdown; pass --plain to print the markdown
itself, e.g. to paste into a document.

Example:
  coinwatch prices
  coinwatch prices --currency eur --limit 10
  COINWATCH_API_KEY=... coinwatch prices --plain`,
	RunE: runPrices,
}

func init() {
	rootCmd.AddCommand(pricesCmd)

	flags := pricesCmd.Flags()
	flags.String("currency", "usd", "quote currency")
	flags.Int("limit", defaultPricesLimit, "number of coins to list (1-250)")
	flags.String("base-url", "", "market data API base URL")
	flags.String("api-key", "", "market data API key")
	flags.Bool("plain", false, "print markdown without terminal styling")
}

func runPrices(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	currency, _ := flags.GetString("currency")
	limit, _ := flags.GetInt("limit")
	baseURL, _ := flags.GetString("base-url")
	apiKey, _ := flags.GetString("api-key")
	plain, _ := flags.GetBool("plain")

	if limit < 1 || limit > maxPricesLimit {
		return fmt.Errorf("limit must be between 1 and %d, got %d", maxPricesLimit, limit)
	}
	currency = strings.ToLower(strings.TrimSpace(currency))
	if currency == "" {
		return fmt.Errorf("currency cannot be empty")
	}

	v := config.NewViper()
	if apiKey == "" {
		apiKey = v.GetString(config.KeyAPIKey)
	}
	if baseURL == "" {
		baseURL = v.GetString(config.KeyBaseURL)
	}

	client := market.NewClient(baseURL, market.WithAPIKey(apiKey))
	defer client.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), pricesTimeout)
	defer cancel()

	coins, err := client.Markets(ctx, currency, limit)
	if err != nil {
		return fmt.Errorf("failed to fetch prices: %w", err)
	}

	md := pricesMarkdown(coins, currency)
	if plain {
		_, err := fmt.Fprint(cmd.OutOrStdout(), md)
		return err
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(tableWordWrap),
	)
	if err != nil {
		return fmt.Errorf("failed to create renderer: %w", err)
	}
	rendered, err := r.Render(md)
	if err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}
	_, err = fmt.Fprint(cmd.OutOrStdout(), rendered)
	return err
}

// pricesMarkdown renders coins as a markdown table. Missing values show
// as a dash.
func pricesMarkdown(coins []market.Coin, currency string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Top %d by market cap (%s)\n\n", len(coins), strings.ToUpper(currency))
	fmt.Fprintf(&b, "| # | Coin | Symbol | Price (%s) | 24h | Market cap |\n", portfolio.Symbol(currency))
	b.WriteString("|--:|------|--------|------:|----:|-----------:|\n")

	for i, c := range coins {
		fmt.Fprintf(&b, "| %d | %s | %s | %s | %s | %s |\n",
			i+1,
			escapeCell(c.Name),
			strings.ToUpper(escapeCell(c.Symbol)),
			formatPrice(c.CurrentPrice, currency),
			formatChange(c.PriceChangePercentage24h),
			formatMoney(c.MarketCap, currency),
		)
	}
	return b.String()
}

func formatMoney(v *float64, currency string) string {
	if v == nil {
		return "-"
	}
	return portfolio.Format(decimal.NewFromFloat(*v), currency)
}

func formatPrice(v *float64, currency string) string {
	if v == nil {
		return "-"
	}
	return portfolio.FormatPrice(decimal.NewFromFloat(*v), currency)
}

func formatChange(v *float64) string {
	if v == nil {
		return "-"
	}
	s := strconv.FormatFloat(*v, 'f', 2, 64) + "%"
	if *v >= 0 {
		s = "+" + s
	}
	return s
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
