package rag

import "time"

// Related question outcomes reported to an Observer.
const (
	RelatedOK      = "ok"
	RelatedError   = "error"
	RelatedTimeout = "timeout"
)

// Observer receives engine measurements. Implementations must be safe for
// concurrent use.
type Observer interface {
	ObserveSearch(backend string, elapsed time.Duration, err error)
	ObserveTokens(n int)
	ObserveRelated(outcome string)
}

type nopObserver struct{}

func (nopObserver) ObserveSearch(string, time.Duration, error) {}
func (nopObserver) ObserveTokens(int)                          {}
func (nopObserver) ObserveRelated(string)                      {}
