package buybox

import (
	"sort"
	"time"

	"github.com/skuflow/repricer/internal/model"
)

// Trend labels for the report's comparison fields.
const (
	TrendImproving    = "improving"
	TrendDeclining    = "declining"
	TrendSteady       = "steady"
	TrendIntensifying = "intensifying"
	TrendEasing       = "easing"
)

// ReasonCount pairs a classification with its frequency.
type ReasonCount struct {
	Reason string `json:"reason"`
	Count  int    `json:"count"`
}

// PerformanceReport aggregates the buy-box ledger over a period. The
// trend fields compare the first half of the period's events against the
// second half.
type PerformanceReport struct {
	ASIN        string        `json:"asin"`
	PeriodStart time.Time     `json:"period_start"`
	PeriodEnd   time.Time     `json:"period_end"`
	TotalEvents int           `json:"total_events"`
	Wins        int           `json:"wins"`
	Losses      int           `json:"losses"`
	WinRate     float64       `json:"win_rate"` // 0-100
	AvgHold     time.Duration `json:"avg_hold"`

	AvgDetectionDelayMs int64   `json:"avg_detection_delay_ms"`
	AvgResponseDelayMs  int64   `json:"avg_response_delay_ms"`
	ResponseSuccessRate float64 `json:"response_success_rate"` // 0-100

	CommonLossReasons []ReasonCount `json:"common_loss_reasons"`
	WinStrategies     []ReasonCount `json:"win_strategies"`

	WinRateByHour    map[int]float64    `json:"win_rate_by_hour"`
	WinRateByWeekday map[string]float64 `json:"win_rate_by_weekday"`

	WinRateTrend       string `json:"win_rate_trend"`
	CompetitionTrend   string `json:"competition_trend"`
	PriceEffectiveness string `json:"price_effectiveness"`
}

// PerformanceReport aggregates the ledger for an ASIN over the period
// ending at now.
func (a *Analyzer) PerformanceReport(asin string, period time.Duration, now time.Time) PerformanceReport {
	since := now.Add(-period)
	events := a.store.BuyBoxEvents(asin, since)
	return BuildPerformanceReport(asin, events, since, now)
}

// BuildPerformanceReport is the pure aggregation over an event slice,
// which must be in chronological order.
func BuildPerformanceReport(asin string, events []model.BuyBoxEvent, start, end time.Time) PerformanceReport {
	rep := PerformanceReport{
		ASIN:             asin,
		PeriodStart:      start,
		PeriodEnd:        end,
		TotalEvents:      len(events),
		WinRateByHour:    make(map[int]float64),
		WinRateByWeekday: make(map[string]float64),
	}
	if len(events) == 0 {
		rep.WinRateTrend = TrendSteady
		rep.CompetitionTrend = TrendSteady
		rep.PriceEffectiveness = TrendSteady
		return rep
	}

	lossReasons := make(map[string]int)
	winStrategies := make(map[string]int)
	hourWins := make(map[int][2]int)    // wins, total
	weekdayWins := make(map[string][2]int)

	var detectionSum, responseSum, detectionN, responseN int64
	var responsesOK, responses int
	var holdSum time.Duration
	var holds int
	var lastWin *time.Time

	for i := range events {
		ev := events[i]
		win := isWin(ev.Kind)
		if win {
			rep.Wins++
			winStrategies[ev.Reason]++
			t := ev.Timestamp
			lastWin = &t
		}
		if ev.Kind == model.BuyBoxLost {
			rep.Losses++
			lossReasons[ev.Reason]++
			if lastWin != nil {
				holdSum += ev.Timestamp.Sub(*lastWin)
				holds++
				lastWin = nil
			}
		}

		if ev.DetectionDelayMs > 0 {
			detectionSum += ev.DetectionDelayMs
			detectionN++
		}
		if ev.ResponseDelayMs > 0 {
			responseSum += ev.ResponseDelayMs
			responseN++
			responses++
			if ev.ResponseSucceeded {
				responsesOK++
			}
		}

		h := ev.Timestamp.Hour()
		hw := hourWins[h]
		if win {
			hw[0]++
		}
		hw[1]++
		hourWins[h] = hw

		day := ev.Timestamp.Weekday().String()
		dw := weekdayWins[day]
		if win {
			dw[0]++
		}
		dw[1]++
		weekdayWins[day] = dw
	}

	if rep.Wins+rep.Losses > 0 {
		rep.WinRate = float64(rep.Wins) / float64(rep.Wins+rep.Losses) * 100
	}
	if holds > 0 {
		rep.AvgHold = holdSum / time.Duration(holds)
	}
	if detectionN > 0 {
		rep.AvgDetectionDelayMs = detectionSum / detectionN
	}
	if responseN > 0 {
		rep.AvgResponseDelayMs = responseSum / responseN
	}
	if responses > 0 {
		rep.ResponseSuccessRate = float64(responsesOK) / float64(responses) * 100
	}

	rep.CommonLossReasons = sortedCounts(lossReasons)
	rep.WinStrategies = sortedCounts(winStrategies)

	for h, w := range hourWins {
		if w[1] > 0 {
			rep.WinRateByHour[h] = float64(w[0]) / float64(w[1]) * 100
		}
	}
	for d, w := range weekdayWins {
		if w[1] > 0 {
			rep.WinRateByWeekday[d] = float64(w[0]) / float64(w[1]) * 100
		}
	}

	first, second := events[:len(events)/2], events[len(events)/2:]
	rep.WinRateTrend = compareRates(winRate(first), winRate(second))
	rep.CompetitionTrend = competitionTrend(first, second)
	rep.PriceEffectiveness = compareRates(responseRate(first), responseRate(second))

	return rep
}

func isWin(k model.BuyBoxTransition) bool {
	return k == model.BuyBoxWon || k == model.BuyBoxRegained || k == model.BuyBoxMaintained
}

func winRate(events []model.BuyBoxEvent) float64 {
	wins, decided := 0, 0
	for _, ev := range events {
		if isWin(ev.Kind) {
			wins++
			decided++
		} else if ev.Kind == model.BuyBoxLost {
			decided++
		}
	}
	if decided == 0 {
		return -1
	}
	return float64(wins) / float64(decided)
}

func responseRate(events []model.BuyBoxEvent) float64 {
	ok, n := 0, 0
	for _, ev := range events {
		if ev.ResponseDelayMs > 0 {
			n++
			if ev.ResponseSucceeded {
				ok++
			}
		}
	}
	if n == 0 {
		return -1
	}
	return float64(ok) / float64(n)
}

func compareRates(first, second float64) string {
	if first < 0 || second < 0 {
		return TrendSteady
	}
	switch {
	case second > first+0.05:
		return TrendImproving
	case second < first-0.05:
		return TrendDeclining
	default:
		return TrendSteady
	}
}

// competitionTrend compares the number of distinct winning sellers in each
// half: more distinct winners means a more contested buy box.
func competitionTrend(first, second []model.BuyBoxEvent) string {
	a, b := distinctWinners(first), distinctWinners(second)
	switch {
	case b > a:
		return TrendIntensifying
	case b < a:
		return TrendEasing
	default:
		return TrendSteady
	}
}

func distinctWinners(events []model.BuyBoxEvent) int {
	winners := make(map[string]bool)
	for _, ev := range events {
		if ev.WinnerSellerID != "" {
			winners[ev.WinnerSellerID] = true
		}
	}
	return len(winners)
}

func sortedCounts(m map[string]int) []ReasonCount {
	out := make([]ReasonCount, 0, len(m))
	for reason, count := range m {
		out = append(out, ReasonCount{Reason: reason, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Reason < out[j].Reason
	})
	return out
}
