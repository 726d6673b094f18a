package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/vitos/crypto_trade_engine/internal/domain"
)

const (
	BinanceSpotBaseURL    = "https://api.binance.com"
	BinanceFuturesBaseURL = "https://fapi.binance.com"
	BinanceWSURL          = "wss://stream.binance.com:9443/ws"
)

// BinanceGateway submits signed market orders over Binance REST. Spot orders
// go to /api/v3/order, futures to /fapi/v1/order. Requests are signed with
// HMAC-SHA256 over the query string.
type BinanceGateway struct {
	apiKey         string
	apiSecret      string
	spotBaseURL    string
	futuresBaseURL string
	client         *http.Client
}

func NewBinanceGateway(apiKey, apiSecret, spotBaseURL, futuresBaseURL string) *BinanceGateway {
	if spotBaseURL == "" {
		spotBaseURL = BinanceSpotBaseURL
	}
	if futuresBaseURL == "" {
		futuresBaseURL = BinanceFuturesBaseURL
	}
	return &BinanceGateway{
		apiKey:         apiKey,
		apiSecret:      apiSecret,
		spotBaseURL:    spotBaseURL,
		futuresBaseURL: futuresBaseURL,
		client:         &http.Client{Timeout: 10 * time.Second},
	}
}

func (g *BinanceGateway) sign(query string) string {
	h := hmac.New(sha256.New, []byte(g.apiSecret))
	h.Write([]byte(query))
	return hex.EncodeToString(h.Sum(nil))
}

func (g *BinanceGateway) sendSigned(ctx context.Context, baseURL, path string, params url.Values) ([]byte, error) {
	params.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
	params.Set("recvWindow", "5000")
	query := params.Encode()
	query += "&signature=" + g.sign(query)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+path, strings.NewReader(query))
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-MBX-APIKEY", g.apiKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrExchange, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", domain.ErrExchange, err)
	}

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Code int    `json:"code"`
			Msg  string `json:"msg"`
		}
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Msg != "" {
			return nil, fmt.Errorf("%w: code %d: %s", domain.ErrExchange, apiErr.Code, apiErr.Msg)
		}
		return nil, fmt.Errorf("%w: HTTP %d: %s", domain.ErrExchange, resp.StatusCode, string(body))
	}

	return body, nil
}

// SubmitMarketOrder places a market order and returns the fills when the
// venue reports them in the response.
func (g *BinanceGateway) SubmitMarketOrder(ctx context.Context, symbol string, side domain.OrderSide, quantity float64, marketType domain.MarketType) (*domain.OrderResult, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("side", string(side))
	params.Set("type", "MARKET")
	params.Set("quantity", strconv.FormatFloat(quantity, 'f', -1, 64))

	baseURL, path := g.spotBaseURL, "/api/v3/order"
	if marketType == domain.MarketFutures {
		baseURL, path = g.futuresBaseURL, "/fapi/v1/order"
	} else {
		// Spot supports FULL responses with per-fill detail.
		params.Set("newOrderRespType", "FULL")
	}

	body, err := g.sendSigned(ctx, baseURL, path, params)
	if err != nil {
		return nil, err
	}

	var raw struct {
		OrderID int64  `json:"orderId"`
		Status  string `json:"status"`
		Fills   []struct {
			Price string `json:"price"`
			Qty   string `json:"qty"`
		} `json:"fills"`
		AvgPrice    string `json:"avgPrice"`
		ExecutedQty string `json:"executedQty"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: parse order response: %v", domain.ErrExchange, err)
	}

	result := &domain.OrderResult{
		OrderID: strconv.FormatInt(raw.OrderID, 10),
		Status:  raw.Status,
	}
	for _, f := range raw.Fills {
		price, _ := strconv.ParseFloat(f.Price, 64)
		qty, _ := strconv.ParseFloat(f.Qty, 64)
		if price > 0 && qty > 0 {
			result.Fills = append(result.Fills, domain.OrderFill{Price: price, Quantity: qty})
		}
	}
	// Futures responses carry an average price instead of fills.
	if len(result.Fills) == 0 && raw.AvgPrice != "" {
		price, _ := strconv.ParseFloat(raw.AvgPrice, 64)
		qty, _ := strconv.ParseFloat(raw.ExecutedQty, 64)
		if price > 0 && qty > 0 {
			result.Fills = append(result.Fills, domain.OrderFill{Price: price, Quantity: qty})
		}
	}

	return result, nil
}

// CurrentPrice fetches the last trade price over REST. Used at startup before
// the stream has produced a tick.
func (g *BinanceGateway) CurrentPrice(ctx context.Context, symbol string) (float64, error) {
	u := g.spotBaseURL + "/api/v3/ticker/price?symbol=" + url.QueryEscape(symbol)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, err
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrExchange, err)
	}
	defer resp.Body.Close()

	var raw struct {
		Price string `json:"price"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return 0, fmt.Errorf("%w: parse ticker: %v", domain.ErrExchange, err)
	}
	price, err := strconv.ParseFloat(raw.Price, 64)
	if err != nil || price <= 0 {
		return 0, fmt.Errorf("%w: ticker for %s", domain.ErrPriceUnavailable, symbol)
	}
	return price, nil
}

// SymbolFilters fetches lot-size and notional filters from exchangeInfo.
// Falls back entry by entry when a filter is missing.
func (g *BinanceGateway) SymbolFilters(ctx context.Context, symbol string) (domain.SymbolFilters, error) {
	out := domain.DefaultSymbolFilters
	out.Symbol = symbol

	u := g.spotBaseURL + "/api/v3/exchangeInfo?symbol=" + url.QueryEscape(symbol)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return out, err
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return out, fmt.Errorf("%w: %v", domain.ErrExchange, err)
	}
	defer resp.Body.Close()

	var raw struct {
		Symbols []struct {
			Filters []struct {
				FilterType  string `json:"filterType"`
				StepSize    string `json:"stepSize"`
				MinQty      string `json:"minQty"`
				MinNotional string `json:"minNotional"`
			} `json:"filters"`
		} `json:"symbols"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return out, fmt.Errorf("%w: parse exchangeInfo: %v", domain.ErrExchange, err)
	}
	if len(raw.Symbols) == 0 {
		return out, fmt.Errorf("%w: symbol %s not listed", domain.ErrExchange, symbol)
	}

	for _, f := range raw.Symbols[0].Filters {
		switch f.FilterType {
		case "LOT_SIZE":
			if v, err := strconv.ParseFloat(f.StepSize, 64); err == nil && v > 0 {
				out.QtyStep = v
			}
			if v, err := strconv.ParseFloat(f.MinQty, 64); err == nil && v > 0 {
				out.MinQty = v
			}
		case "MIN_NOTIONAL", "NOTIONAL":
			if v, err := strconv.ParseFloat(f.MinNotional, 64); err == nil && v > 0 {
				out.MinNotional = v
			}
		}
	}
	return out, nil
}
