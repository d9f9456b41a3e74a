package model

import "fmt"

// FetchError means a product page could not be retrieved: transport failure or non-2xx status.
type FetchError struct {
	Product    ProductID
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: fetch failed: HTTP %d on %s", e.Product, e.StatusCode, e.URL)
	}
	return fmt.Sprintf("%s: fetch failed on %s: %v", e.Product, e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ExtractionError means the page text no longer carries the rate where we expect it.
// Usually the upstream wording or layout changed.
type ExtractionError struct {
	Product ProductID
	Reason  string
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("%s: extraction failed: %s", e.Product, e.Reason)
}

// OutOfRangeError means an extracted rate is not plausible and was most likely picked up from unrelated text.
type OutOfRangeError struct {
	Product ProductID
	Rate    float64
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("%s: validation failed: rate out of bounds: %v", e.Product, e.Rate)
}

// PersistenceError covers reading, parsing and writing persisted state.
type PersistenceError struct {
	Target string
	Err    error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failed for %s: %v", e.Target, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
