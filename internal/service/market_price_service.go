package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"propdesk/internal/domain"
)

// MarketPriceService fetches real-time prices from Binance. It is the
// price-lookup collaborator consumed by the trade executor and the risk
// evaluator; latency and availability are outside the core's control.
type MarketPriceService struct {
	httpClient *http.Client
	baseURL    string
}

// NewMarketPriceService creates a new MarketPriceService
func NewMarketPriceService(baseURL string) *MarketPriceService {
	if baseURL == "" {
		baseURL = "https://api.binance.com"
	}
	return &MarketPriceService{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURL: baseURL,
	}
}

// GetQuotes fetches current prices for multiple symbols in one API call.
// Symbols the exchange could not price are omitted from the result; the
// call fails only when the whole lookup is unavailable.
func (s *MarketPriceService) GetQuotes(ctx context.Context, symbols []string) (map[string]domain.PriceQuote, error) {
	quotes := make(map[string]domain.PriceQuote)
	if len(symbols) == 0 {
		return quotes, nil
	}

	url := fmt.Sprintf("%s/api/v3/ticker/price", s.baseURL)

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", domain.ErrPriceUnavailable)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch prices from Binance: %v: %w", err, domain.ErrPriceUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("Binance API error: status=%d, body=%s: %w", resp.StatusCode, string(body), domain.ErrPriceUnavailable)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", domain.ErrPriceUnavailable)
	}

	// Binance returns an array of all tickers
	var tickers []struct {
		Symbol string `json:"symbol"`
		Price  string `json:"price"`
	}

	if err := json.Unmarshal(body, &tickers); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", domain.ErrPriceUnavailable)
	}

	now := time.Now()

	symbolMap := make(map[string]bool, len(symbols))
	for _, symbol := range symbols {
		symbolMap[normalizeSymbol(symbol)] = true
	}

	for _, ticker := range tickers {
		if !symbolMap[ticker.Symbol] {
			continue
		}
		price, err := decimal.NewFromString(ticker.Price)
		if err != nil {
			log.Printf("WARNING: Unparseable price for %s: %q", ticker.Symbol, ticker.Price)
			continue
		}
		quotes[ticker.Symbol] = domain.PriceQuote{
			Symbol:    ticker.Symbol,
			Price:     price,
			Timestamp: now,
		}
	}

	return quotes, nil
}

// GetQuote fetches the current price for a single symbol
func (s *MarketPriceService) GetQuote(ctx context.Context, symbol string) (domain.PriceQuote, error) {
	quotes, err := s.GetQuotes(ctx, []string{symbol})
	if err != nil {
		return domain.PriceQuote{}, err
	}

	quote, ok := quotes[normalizeSymbol(symbol)]
	if !ok {
		return domain.PriceQuote{}, fmt.Errorf("no quote for symbol %s: %w", symbol, domain.ErrPriceUnavailable)
	}

	return quote, nil
}

// normalizeSymbol maps chart-style symbols ("BINANCE:BTCUSDT", "btc/usdt")
// to the exchange ticker form.
func normalizeSymbol(symbol string) string {
	symbol = strings.ToUpper(symbol)
	if i := strings.IndexByte(symbol, ':'); i >= 0 {
		symbol = symbol[i+1:]
	}
	return strings.ReplaceAll(symbol, "/", "")
}
