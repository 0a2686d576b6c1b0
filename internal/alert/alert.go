package alert

import (
	"fmt"
	"sort"
	"time"
)

// Type identifies the market event class an alert reports.
type Type string

const (
	TypePriceDrop     Type = "price_drop"
	TypePriceIncrease Type = "price_increase"
	TypeNewCompetitor Type = "new_competitor"
	TypeOutOfStock    Type = "out_of_stock"
	TypeBuyBoxLost    Type = "buybox_lost"
	TypeBuyBoxWon     Type = "buybox_won"
	TypeOpportunity   Type = "opportunity"
	TypeSessionReport Type = "session_report"
)

// Severity levels, lowest to highest.
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// Alert is a significant market or engine event queued for delivery.
type Alert struct {
	Type      Type              `json:"type"`
	Severity  string            `json:"severity"`
	ASIN      string            `json:"asin,omitempty"`
	Message   string            `json:"message"`
	Data      map[string]string `json:"data,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// SeverityRank orders severities for filtering and sorting. Unknown
// severities rank lowest.
func SeverityRank(severity string) int {
	switch severity {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// SeverityForChange maps a percent price change magnitude to a severity.
func SeverityForChange(changePct, highPct, mediumPct float64) string {
	abs := changePct
	if abs < 0 {
		abs = -abs
	}
	if abs > highPct {
		return SeverityHigh
	}
	if abs > mediumPct {
		return SeverityMedium
	}
	return SeverityLow
}

// FilterBySeverity drops alerts below the minimum severity. An empty or
// unknown minimum disables filtering.
func FilterBySeverity(alerts []Alert, minSeverity string) []Alert {
	minRank := SeverityRank(minSeverity)
	if minRank == 0 {
		return alerts
	}
	var filtered []Alert
	for _, a := range alerts {
		if SeverityRank(a.Severity) >= minRank {
			filtered = append(filtered, a)
		}
	}
	return filtered
}

// SortBySeverity orders alerts by severity, newest first within a level.
func SortBySeverity(alerts []Alert) {
	sort.Slice(alerts, func(i, j int) bool {
		if alerts[i].Severity != alerts[j].Severity {
			return SeverityRank(alerts[i].Severity) > SeverityRank(alerts[j].Severity)
		}
		return alerts[i].Timestamp.After(alerts[j].Timestamp)
	})
}

// Format creates a human-readable representation of an alert.
func Format(a Alert) string {
	out := fmt.Sprintf("[%s] %s", a.Severity, string(a.Type))
	if a.ASIN != "" {
		out += fmt.Sprintf(" %s", a.ASIN)
	}
	out += fmt.Sprintf(": %s", a.Message)
	return out
}
