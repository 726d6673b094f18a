package domain

// Summary aggregates the registry's lifetime activity.
type Summary struct {
	Total    int     `json:"total"`
	Open     int     `json:"open"`
	Closed   int     `json:"closed"`
	TotalPnL float64 `json:"total_pnl"`
}
