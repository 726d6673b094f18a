package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/vitos/crypto_trade_engine/internal/domain"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Exchange ExchangeConfig `yaml:"exchange"`
	Redis    RedisConfig    `yaml:"redis"`
	Trading  TradingConfig  `yaml:"trading"`
	Risk     RiskConfig     `yaml:"risk"`
	Exits    ExitsConfig    `yaml:"exits"`
	Symbols  []SymbolConfig `yaml:"symbols"`
	Logging  LoggingConfig  `yaml:"logging"`
	Server   ServerConfig   `yaml:"server"`
}

type ExchangeConfig struct {
	APIKey       string `yaml:"api_key"`
	APISecret    string `yaml:"api_secret"`
	RESTEndpoint string `yaml:"rest_endpoint"`
	WSEndpoint   string `yaml:"ws_endpoint"`
	Testnet      bool   `yaml:"testnet"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type TradingConfig struct {
	TradeAmountUSDT       float64 `yaml:"trade_amount_usdt"`
	MarketType            string  `yaml:"market_type"`
	SpotCommissionRate    float64 `yaml:"spot_commission_rate"`
	FuturesCommissionRate float64 `yaml:"futures_commission_rate"`
	RefreshIntervalMs     int     `yaml:"refresh_interval_ms"`
	MaxHoldTimeSec        int     `yaml:"max_hold_time_sec"`
	TargetPercent         float64 `yaml:"target_percent"`
	StopLossPercent       float64 `yaml:"stoploss_percent"`
	Strategy              string  `yaml:"strategy"`
	SignalPollMs          int     `yaml:"signal_poll_ms"`
	WatchSymbols          []string `yaml:"watch_symbols"`
}

func (t TradingConfig) RefreshInterval() time.Duration {
	return time.Duration(t.RefreshIntervalMs) * time.Millisecond
}

func (t TradingConfig) MaxHoldTime() time.Duration {
	return time.Duration(t.MaxHoldTimeSec) * time.Second
}

func (t TradingConfig) SignalPollInterval() time.Duration {
	return time.Duration(t.SignalPollMs) * time.Millisecond
}

// CommissionRate returns the commission for a market type, or an error for
// an unknown one.
func (t TradingConfig) CommissionRate(mt domain.MarketType) (float64, error) {
	switch mt {
	case domain.MarketSpot:
		return t.SpotCommissionRate, nil
	case domain.MarketFutures:
		return t.FuturesCommissionRate, nil
	default:
		return 0, fmt.Errorf("%w: unknown market type %q", domain.ErrInvalidParameters, mt)
	}
}

// RiskConfig holds the volatility-model tunables. The value is immutable once
// loaded; every risk model instance receives a copy at construction.
type RiskConfig struct {
	ATRPeriod            int     `yaml:"atr_period"`
	BandPeriod           int     `yaml:"band_period"`
	BandStd              float64 `yaml:"band_std"`
	VolatilityWindow     int     `yaml:"volatility_window"`
	TrailingActivation   float64 `yaml:"trailing_activation_pct"` // fraction, 0.005 = 0.5%
	StopMode             string  `yaml:"stop_mode"`               // "volatility", "fixed", "percent"
	StopValue            float64 `yaml:"stop_value"`              // distance (fixed) or percent (percent)
	ProfitTaking         string  `yaml:"profit_taking"`           // "dynamic" or "fixed"
	ProfitMultiplier     float64 `yaml:"profit_multiplier"`
	MaxDrawdownPct       float64 `yaml:"max_drawdown_pct"` // fraction of favorable extreme
	VolExpansionMultiple float64 `yaml:"vol_expansion_multiple"`
}

type ExitsConfig struct {
	Enabled    []string       `yaml:"enabled"`
	Priorities map[string]int `yaml:"priorities"`
}

// EnabledReasons maps the configured families to domain reasons.
func (e ExitsConfig) EnabledReasons() map[domain.ExitReason]bool {
	out := make(map[domain.ExitReason]bool, len(e.Enabled))
	for _, name := range e.Enabled {
		out[domain.ExitReason(name)] = true
	}
	return out
}

// PriorityFor returns the configured priority for a reason. Unconfigured
// reasons sort last.
func (e ExitsConfig) PriorityFor(reason domain.ExitReason) int {
	if p, ok := e.Priorities[string(reason)]; ok {
		return p
	}
	return 1000
}

type SymbolConfig struct {
	Symbol         string  `yaml:"symbol"`
	QtyStep        float64 `yaml:"qty_step"`
	MinQty         float64 `yaml:"min_qty"`
	MinNotional    float64 `yaml:"min_notional"`
	PricePrecision int     `yaml:"price_precision"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

// Load reads the YAML config and applies defaults. Exchange credentials may
// be overridden from the environment (EXCHANGE_API_KEY, EXCHANGE_API_SECRET)
// so they can live in .env instead of the config file.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	var cfg Config
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if key := os.Getenv("EXCHANGE_API_KEY"); key != "" {
		cfg.Exchange.APIKey = key
	}
	if secret := os.Getenv("EXCHANGE_API_SECRET"); secret != "" {
		cfg.Exchange.APISecret = secret
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// validate catches configuration mistakes at startup instead of on every
// order. The market type in particular gates every commission lookup.
func (c *Config) validate() error {
	switch domain.MarketType(c.Trading.MarketType) {
	case domain.MarketSpot, domain.MarketFutures:
	default:
		return fmt.Errorf("%w: market type %q (want %q or %q)",
			domain.ErrInvalidParameters, c.Trading.MarketType, domain.MarketSpot, domain.MarketFutures)
	}
	return nil
}

func (c *Config) applyDefaults() {
	t := &c.Trading
	if t.TradeAmountUSDT == 0 {
		t.TradeAmountUSDT = 100
	}
	t.MarketType = strings.ToLower(strings.TrimSpace(t.MarketType))
	if t.MarketType == "" {
		t.MarketType = string(domain.MarketSpot)
	}
	if t.SpotCommissionRate == 0 {
		t.SpotCommissionRate = 0.001
	}
	if t.FuturesCommissionRate == 0 {
		t.FuturesCommissionRate = 0.0004
	}
	if t.RefreshIntervalMs == 0 {
		t.RefreshIntervalMs = 1000
	}
	if t.MaxHoldTimeSec == 0 {
		t.MaxHoldTimeSec = 60
	}
	if t.TargetPercent == 0 {
		t.TargetPercent = 0.4
	}
	if t.StopLossPercent == 0 {
		t.StopLossPercent = 0.2
	}
	if t.Strategy == "" {
		t.Strategy = "Breakout"
	}
	if t.SignalPollMs == 0 {
		t.SignalPollMs = 500
	}

	r := &c.Risk
	if r.ATRPeriod == 0 {
		r.ATRPeriod = 14
	}
	if r.BandPeriod == 0 {
		r.BandPeriod = 20
	}
	if r.BandStd == 0 {
		r.BandStd = 2.0
	}
	if r.VolatilityWindow == 0 {
		r.VolatilityWindow = 30
	}
	if r.TrailingActivation == 0 {
		r.TrailingActivation = 0.005
	}
	if r.StopMode == "" {
		r.StopMode = "volatility"
	}
	if r.ProfitTaking == "" {
		r.ProfitTaking = "dynamic"
	}
	if r.ProfitMultiplier == 0 {
		r.ProfitMultiplier = 2.0
	}
	if r.MaxDrawdownPct == 0 {
		r.MaxDrawdownPct = 0.05
	}
	if r.VolExpansionMultiple == 0 {
		r.VolExpansionMultiple = 2.0
	}

	if len(c.Exits.Enabled) == 0 {
		c.Exits.Enabled = []string{
			string(domain.ExitStrategySignal),
			string(domain.ExitTarget),
			string(domain.ExitStopLoss),
			string(domain.ExitTrailingStop),
			string(domain.ExitTakeProfit),
			string(domain.ExitTimeLimit),
			string(domain.ExitMaxDrawdown),
			string(domain.ExitVolatilityBreakout),
			string(domain.ExitVolatilityBreakdown),
			string(domain.ExitVolatilityExpansion),
		}
	}
	if len(c.Exits.Priorities) == 0 {
		c.Exits.Priorities = DefaultExitPriorities()
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
}

// DefaultExitPriorities orders simultaneous triggers: an explicit strategy
// reversal beats everything, then profit targets beat protective stops.
func DefaultExitPriorities() map[string]int {
	return map[string]int{
		string(domain.ExitStrategySignal):      1,
		string(domain.ExitTarget):              2,
		string(domain.ExitStopLoss):            3,
		string(domain.ExitTrailingStop):        4,
		string(domain.ExitTakeProfit):          5,
		string(domain.ExitTimeLimit):           6,
		string(domain.ExitMaxDrawdown):         7,
		string(domain.ExitVolatilityBreakout):  8,
		string(domain.ExitVolatilityBreakdown): 8,
		string(domain.ExitVolatilityExpansion): 9,
	}
}

// SymbolTable builds a metadata lookup from the configured symbols.
func (c *Config) SymbolTable() *SymbolTable {
	table := make(map[string]domain.SymbolFilters, len(c.Symbols))
	for _, s := range c.Symbols {
		table[s.Symbol] = domain.SymbolFilters{
			Symbol:         s.Symbol,
			QtyStep:        s.QtyStep,
			MinQty:         s.MinQty,
			MinNotional:    s.MinNotional,
			PricePrecision: s.PricePrecision,
		}
	}
	return &SymbolTable{filters: table}
}

// SymbolTable implements domain.SymbolMetadata over the configured symbols.
type SymbolTable struct {
	filters map[string]domain.SymbolFilters
}

// Apply overrides one symbol's filters, typically with live exchange data
// fetched at startup.
func (t *SymbolTable) Apply(f domain.SymbolFilters) {
	t.filters[f.Symbol] = f
}

func (t *SymbolTable) Filters(symbol string) domain.SymbolFilters {
	if f, ok := t.filters[symbol]; ok {
		return f
	}
	f := domain.DefaultSymbolFilters
	f.Symbol = symbol
	return f
}
