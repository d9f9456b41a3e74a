package crawler

import (
	"math"

	"github.com/ymakhloufi/taux-livrets/internal/pkg/model"
)

// MaxPlausibleRate is the highest rate we accept from a page. Regulated savings never came close;
// anything above it was picked up from an unrelated number.
const MaxPlausibleRate = 0.20

// ValidateRate rejects rates outside [0, MaxPlausibleRate]. It says nothing about correctness.
func ValidateRate(product model.ProductID, rate float64) error {
	if math.IsNaN(rate) || rate < 0 || rate > MaxPlausibleRate {
		return &model.OutOfRangeError{Product: product, Rate: rate}
	}
	return nil
}
