// Package insights считает ряды для графиков, статистику и советы по
// синхронизированным метрикам активности.
package insights

import (
	"fmt"
	"math"
)

// Stats — сводка по ряду. Среднее считается целочисленным делением.
type Stats struct {
	Average int `json:"average"`
	Total   int `json:"total"`
	Highest int `json:"highest"`
	Lowest  int `json:"lowest"`
}

// Statistics возвращает нули для пустого ряда.
func Statistics(values []int) Stats {
	if len(values) == 0 {
		return Stats{}
	}

	st := Stats{Highest: values[0], Lowest: values[0]}
	for _, v := range values {
		st.Total += v
		st.Highest = max(st.Highest, v)
		st.Lowest = min(st.Lowest, v)
	}
	st.Average = st.Total / len(values)
	return st
}

type TrendDirection string

const (
	TrendIncrease TrendDirection = "increase"
	TrendDecrease TrendDirection = "decrease"
	TrendStable   TrendDirection = "stable"
	TrendUnknown  TrendDirection = "unknown"
)

// trendThreshold — изменение в процентах, после которого тренд не stable.
const trendThreshold = 10

type TrendResult struct {
	Direction     TrendDirection `json:"direction"`
	PercentChange int            `json:"percent_change"`
	Description   string         `json:"description"`
}

// Trend сравнивает среднее первой половины ряда со средним второй.
// При нечётной длине средняя точка не учитывается.
func Trend(values []int) TrendResult {
	if len(values) < 2 {
		return TrendResult{
			Direction:   TrendUnknown,
			Description: "Not enough data to determine a trend.",
		}
	}

	half := len(values) / 2
	first := Statistics(values[:half]).Average
	second := Statistics(values[len(values)-half:]).Average

	if first == 0 {
		if second > 0 {
			return TrendResult{
				Direction:   TrendIncrease,
				Description: "Your activity has increased compared to the earlier period.",
			}
		}
		return stable(0)
	}

	change := float64(second-first) / float64(first) * 100
	pct := int(change)
	switch {
	case change > trendThreshold:
		return TrendResult{
			Direction:     TrendIncrease,
			PercentChange: pct,
			Description:   fmt.Sprintf("Your activity has increased by %d%% compared to the earlier period.", pct),
		}
	case change < -trendThreshold:
		return TrendResult{
			Direction:     TrendDecrease,
			PercentChange: pct,
			Description:   fmt.Sprintf("Your activity has decreased by %d%% compared to the earlier period.", int(math.Abs(change))),
		}
	default:
		return stable(pct)
	}
}

func stable(pct int) TrendResult {
	return TrendResult{
		Direction:     TrendStable,
		PercentChange: pct,
		Description:   "Your activity has remained relatively stable over this period.",
	}
}
