package strategyconfig

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"
)

// ValidationError 검증 실패 (프로그램 중단)
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Warning 권장 위반 (경고만)
type Warning struct {
	Code    string
	Message string
}

var strategyIDPattern = regexp.MustCompile(`^[a-z0-9_]+$`)

// Validate checks all required constraints
// 실패 시 error 반환 (프로그램 중단)
func Validate(cfg *Config) error {
	// === Meta ===
	if cfg.Meta.StrategyID == "" {
		return ValidationError{"meta.strategy_id", "required"}
	}
	if !strategyIDPattern.MatchString(cfg.Meta.StrategyID) {
		return ValidationError{"meta.strategy_id", "must match [a-z0-9_]+"}
	}
	if _, err := cfg.Location(); err != nil {
		return ValidationError{"meta.timezone", err.Error()}
	}

	// === Cycle ===
	if cfg.Cycle.ReferenceYear <= 0 {
		return ValidationError{"cycle.reference_year", "must be > 0"}
	}

	// === Signal ===
	s := cfg.Signal
	if s.BuyThreshold <= 0 {
		return ValidationError{"signal.buy_threshold", "must be > 0"}
	}
	if s.SellThreshold >= 0 {
		return ValidationError{"signal.sell_threshold", "must be < 0"}
	}
	if s.ConfidenceDivisor <= 0 {
		return ValidationError{"signal.confidence_divisor", "must be > 0"}
	}
	if err := validatePctRange(s.HoldConfidence, "signal.hold_confidence"); err != nil {
		return err
	}

	// === Portfolio ===
	p := cfg.Portfolio
	if p.InitialCapital <= 0 || math.IsInf(p.InitialCapital, 0) {
		return ValidationError{"portfolio.initial_capital", "must be > 0"}
	}
	if p.PositionFraction <= 0 || p.PositionFraction > 1 {
		return ValidationError{"portfolio.position_fraction", "must be in (0, 1]"}
	}
	if p.RiskFreeRate < 0 || p.RiskFreeRate > 1 {
		return ValidationError{"portfolio.risk_free_rate", "must be in range [0, 1]"}
	}

	// === Universe ===
	seen := make(map[string]bool, len(cfg.Universe.Symbols))
	for i, symbol := range cfg.Universe.Symbols {
		if strings.TrimSpace(symbol) == "" {
			return ValidationError{fmt.Sprintf("universe.symbols[%d]", i), "must not be empty"}
		}
		if seen[symbol] {
			return ValidationError{fmt.Sprintf("universe.symbols[%d]", i), fmt.Sprintf("duplicate symbol %s", symbol)}
		}
		seen[symbol] = true
	}

	start, err := validateDate(cfg.Universe.StartDate, "universe.start_date")
	if err != nil {
		return err
	}
	end, err := validateDate(cfg.Universe.EndDate, "universe.end_date")
	if err != nil {
		return err
	}
	if !start.IsZero() && !end.IsZero() && !start.Before(end) {
		return ValidationError{"universe", "start_date must be before end_date"}
	}

	return nil
}

// Warn checks recommended constraints (non-fatal)
func Warn(cfg *Config) []Warning {
	var warnings []Warning

	// 약화 감점이 없으면 점수는 항상 0 이상
	if !cfg.Signal.WeakeningPenalty {
		warnings = append(warnings, Warning{
			Code:    "SELL_UNREACHABLE",
			Message: "weakening_penalty is off: score is never negative, SELL never fires",
		})
	}

	// 하루 사이 바뀌는 기둥은 많아야 2~3개
	if cfg.Signal.BuyThreshold > 5 {
		warnings = append(warnings, Warning{
			Code:    "BUY_RARE",
			Message: fmt.Sprintf("buy_threshold=%d: day-over-day scores rarely exceed 5", cfg.Signal.BuyThreshold),
		})
	}

	if cfg.Portfolio.PositionFraction > 0.5 {
		warnings = append(warnings, Warning{
			Code:    "HIGH_EXPOSURE",
			Message: "position_fraction > 50%: a single BUY can commit most of the cash",
		})
	}

	if len(cfg.Universe.Symbols) == 0 {
		warnings = append(warnings, Warning{
			Code:    "EMPTY_UNIVERSE",
			Message: "universe.symbols is empty: symbols must come from the command line",
		})
	}

	return warnings
}

// === Helper Functions ===

func validateDate(s, field string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, ValidationError{field, "must be YYYY-MM-DD"}
	}
	return t, nil
}

// validatePctRange는 퍼센트 값이 0~1 범위인지 검증
func validatePctRange(pct float64, field string) error {
	if pct < 0 || pct > 1 {
		return ValidationError{field, "must be in range [0, 1]"}
	}
	return nil
}
