package usecase

import (
	"math"

	"github.com/vitos/crypto_trade_engine/internal/config"
	"github.com/vitos/crypto_trade_engine/internal/domain"
)

// annualization factor for daily log returns
var sqrtTradingDays = math.Sqrt(252)

type bar struct {
	high  float64
	low   float64
	close float64
}

// RiskModel is the per-position adaptive stop/target model. It keeps bounded
// rolling windows of price data and derives ATR, volatility bands and
// annualized historical volatility from them. Each position owns exactly one
// instance; it is only touched from that position's monitor tick, so it needs
// no locking. It never mutates the Position itself.
type RiskModel struct {
	cfg  config.RiskConfig
	side domain.Side

	entryPrice float64
	highest    float64 // favorable extreme for longs
	lowest     float64 // favorable extreme for shorts

	bars    []bar
	returns []float64

	atr       float64
	bandUpper float64
	bandLower float64
	histVol   float64

	trailingActive bool
	stop           float64
	target         float64
}

func NewRiskModel(cfg config.RiskConfig, side domain.Side, entryPrice float64) *RiskModel {
	m := &RiskModel{
		cfg:        cfg,
		side:       side,
		entryPrice: entryPrice,
		highest:    entryPrice,
		lowest:     entryPrice,
		bandUpper:  entryPrice,
		bandLower:  entryPrice,
	}
	m.bars = append(m.bars, bar{high: entryPrice, low: entryPrice, close: entryPrice})

	// Seed a tight protective stop until the windows warm up.
	seed := entryPrice * cfg.VolExpansionMultiple * 0.001
	if side == domain.SideLong {
		m.stop = entryPrice - seed
	} else {
		m.stop = entryPrice + seed
	}
	return m
}

// Update ingests one tick and returns the recomputed (stop, target).
func (m *RiskModel) Update(price, high, low float64) (stop, target float64) {
	m.appendBar(price, high, low)
	m.recomputeIndicators()
	m.updateExtremes(price)

	distance := m.stopDistance(price)

	if !m.trailingActive && m.favorableMove(price) >= m.cfg.TrailingActivation {
		m.trailingActive = true
	}

	if m.side == domain.SideLong {
		if m.trailingActive {
			// Ratchet: the stop follows the market up, never back down.
			m.stop = math.Max(price-distance, m.stop)
		} else {
			m.stop = m.entryPrice - distance
		}
		m.target = price + m.profitDistance(price, distance)
	} else {
		if m.trailingActive {
			m.stop = math.Min(price+distance, m.stop)
		} else {
			m.stop = m.entryPrice + distance
		}
		m.target = price - m.profitDistance(price, distance)
	}

	return m.stop, m.target
}

func (m *RiskModel) appendBar(price, high, low float64) {
	prevClose := m.bars[len(m.bars)-1].close
	if prevClose > 0 && price > 0 {
		m.returns = append(m.returns, math.Log(price/prevClose))
		if len(m.returns) > m.cfg.VolatilityWindow {
			m.returns = m.returns[1:]
		}
	}

	m.bars = append(m.bars, bar{high: high, low: low, close: price})
	maxBars := m.cfg.ATRPeriod
	if m.cfg.BandPeriod > maxBars {
		maxBars = m.cfg.BandPeriod
	}
	// One extra bar so the oldest true range still has a previous close.
	if len(m.bars) > maxBars+1 {
		m.bars = m.bars[1:]
	}
}

func (m *RiskModel) recomputeIndicators() {
	if len(m.bars) < 2 {
		return
	}

	// ATR over the newest ATRPeriod bars.
	start := len(m.bars) - m.cfg.ATRPeriod
	if start < 1 {
		start = 1
	}
	var trSum float64
	var trCount int
	for i := start; i < len(m.bars); i++ {
		prevClose := m.bars[i-1].close
		tr := math.Max(m.bars[i].high-m.bars[i].low,
			math.Max(math.Abs(m.bars[i].high-prevClose), math.Abs(m.bars[i].low-prevClose)))
		trSum += tr
		trCount++
	}
	if trCount > 0 {
		m.atr = trSum / float64(trCount)
	}

	// Volatility band over the newest BandPeriod closes.
	if len(m.bars) >= m.cfg.BandPeriod {
		closes := make([]float64, 0, m.cfg.BandPeriod)
		for i := len(m.bars) - m.cfg.BandPeriod; i < len(m.bars); i++ {
			closes = append(closes, m.bars[i].close)
		}
		sma := mean(closes)
		sd := stddev(closes, sma)
		m.bandUpper = sma + m.cfg.BandStd*sd
		m.bandLower = sma - m.cfg.BandStd*sd
	}

	// Annualized historical volatility once the return window is full.
	if len(m.returns) >= m.cfg.VolatilityWindow {
		m.histVol = stddev(m.returns, mean(m.returns)) * sqrtTradingDays
	}
}

func (m *RiskModel) updateExtremes(price float64) {
	if m.side == domain.SideLong {
		m.highest = math.Max(m.highest, price)
	} else {
		m.lowest = math.Min(m.lowest, price)
	}
}

func (m *RiskModel) favorableMove(price float64) float64 {
	if m.side == domain.SideLong {
		return (price - m.entryPrice) / m.entryPrice
	}
	return (m.entryPrice - price) / m.entryPrice
}

// stopDistance blends ATR, band width and historical volatility into one
// price distance. Until all three indicators are warm it falls back to 1% of
// the current price. Fixed-distance and fixed-percent stop modes override the
// blend entirely.
func (m *RiskModel) stopDistance(price float64) float64 {
	switch m.cfg.StopMode {
	case "fixed":
		return m.cfg.StopValue
	case "percent":
		return price * m.cfg.StopValue / 100
	}

	if m.atr == 0 || m.histVol == 0 || m.bandUpper == m.bandLower {
		return price * 0.01
	}

	volRange := price * m.histVol / sqrtTradingDays
	return 0.4*m.atr + 0.3*(m.bandUpper-m.bandLower)/2 + 0.3*volRange
}

func (m *RiskModel) profitDistance(price, stopDistance float64) float64 {
	if m.cfg.ProfitTaking == "fixed" {
		return price * m.cfg.ProfitMultiplier / 100
	}
	return stopDistance * m.cfg.ProfitMultiplier
}

// Stop returns the current stop price.
func (m *RiskModel) Stop() float64 { return m.stop }

// Target returns the current profit target.
func (m *RiskModel) Target() float64 { return m.target }

// TrailingActive reports whether the stop has started ratcheting.
func (m *RiskModel) TrailingActive() bool { return m.trailingActive }

// Band returns the current volatility band boundaries.
func (m *RiskModel) Band() (upper, lower float64) { return m.bandUpper, m.bandLower }

// ATR returns the current average true range.
func (m *RiskModel) ATR() float64 { return m.atr }

// HistVolatility returns the annualized historical volatility.
func (m *RiskModel) HistVolatility() float64 { return m.histVol }

// FavorableExtreme returns the best price reached since entry.
func (m *RiskModel) FavorableExtreme() float64 {
	if m.side == domain.SideLong {
		return m.highest
	}
	return m.lowest
}

// MaxDrawdownLimit is the configured give-back fraction that ends the trade.
func (m *RiskModel) MaxDrawdownLimit() float64 { return m.cfg.MaxDrawdownPct }

// Drawdown is the retracement from the favorable extreme, as a fraction.
func (m *RiskModel) Drawdown(price float64) float64 {
	if m.side == domain.SideLong {
		if m.highest == 0 {
			return 0
		}
		return (m.highest - price) / m.highest
	}
	if m.lowest == 0 {
		return 0
	}
	return (price - m.lowest) / m.lowest
}

// VolatilityExpanded reports whether historical volatility has blown out
// relative to the recent mean return magnitude.
func (m *RiskModel) VolatilityExpanded() bool {
	if m.histVol == 0 || len(m.returns) == 0 {
		return false
	}
	return m.histVol > m.cfg.VolExpansionMultiple*math.Abs(mean(m.returns))
}

func mean(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func stddev(xs []float64, mu float64) float64 {
	var sum float64
	for _, x := range xs {
		d := x - mu
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(xs)))
}
