package model

import (
	"math"

	"cloud.google.com/go/civil"
)

const sameRateTolerance = 1e-12

// Record applies rate, effective on date, to the product and reports whether anything changed.
//
// A rate equal to the current one is a no-op. A new rate on the day of the last history entry
// overwrites that entry. On any other day a history entry is appended, unless the last entry
// already holds the same rate.
func (p *ProductRate) Record(date civil.Date, rate float64) bool {
	if rate == p.CurrentRate {
		return false
	}

	p.CurrentRate = rate
	p.CurrentSince = date

	n := len(p.History)
	if n > 0 && p.History[n-1].Date == date {
		p.History[n-1].Rate = rate
		return true
	}
	if n > 0 && math.Abs(p.History[n-1].Rate-rate) < sameRateTolerance {
		return true
	}
	p.History = append(p.History, HistoryEntry{Date: date, Rate: rate})
	return true
}
