package models

// RiskAssessment is the risk gate's verdict for a single signal against a
// portfolio snapshot. Created fresh per evaluation, never persisted.
type RiskAssessment struct {
	Valid          bool     `json:"valid"`
	Warnings       []string `json:"warnings,omitempty"`
	Errors         []string `json:"errors,omitempty"`
	Score          float64  `json:"score"` // 0..100, higher is riskier
	AdjustedAmount float64  `json:"adjusted_amount,omitempty"`
	Adjusted       bool     `json:"adjusted,omitempty"`
	EvaluatedAt    int64    `json:"evaluated_at"` // ms since epoch
}

// Warn appends a soft finding; warnings never flip the verdict.
func (a *RiskAssessment) Warn(msg string) {
	a.Warnings = append(a.Warnings, msg)
}

// Fail appends a blocking error and invalidates the assessment.
func (a *RiskAssessment) Fail(msg string) {
	a.Errors = append(a.Errors, msg)
	a.Valid = false
}

// MarketEstimate carries advisory volatility and liquidity figures for a
// symbol, supplied by an external market-data collaborator.
type MarketEstimate struct {
	Symbol     string  `json:"symbol"`
	Volatility float64 `json:"volatility"` // stdev of recent returns
	Liquidity  float64 `json:"liquidity"`  // 24h quote volume
	Timestamp  int64   `json:"timestamp"`
}
