// Package fetch is the single upstream-facing HTTP layer: a global
// concurrency cap, min-interval spacing between request starts, retry with
// exponential backoff and jitter, Retry-After handling and a per-tag
// circuit breaker.
package fetch

import (
	"fmt"
	"time"
)

// ValidationError reports malformed caller input before any I/O happens.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validazione fallita per %s: %s", e.Field, e.Msg)
}

// NetworkError covers transport failures, unexpected status codes and an
// exhausted retry budget. Status is zero when no response was received.
type NetworkError struct {
	Status int
	Err    error
}

func (e *NetworkError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("errore di rete (HTTP %d): %v", e.Status, e.Err)
	}
	return fmt.Sprintf("errore di rete: %v", e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// DocumentNotFoundError marks a URN or article that the upstream does not
// have. Never retried.
type DocumentNotFoundError struct {
	URN string
}

func (e *DocumentNotFoundError) Error() string {
	return fmt.Sprintf("documento non trovato: %s", e.URN)
}

// RateLimitError is returned when the retry budget runs out while the
// upstream keeps answering 429/503.
type RateLimitError struct {
	Status     int
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("limite di richieste raggiunto (HTTP %d, retry-after %s)", e.Status, e.RetryAfter)
}

// BreakerOpenError is the fail-fast error while a tag's circuit is open.
// No socket activity happens when this is returned.
type BreakerOpenError struct {
	Tag string
}

func (e *BreakerOpenError) Error() string {
	return fmt.Sprintf("circuito aperto per %s: richiesta rifiutata", e.Tag)
}

// ParsingError signals that upstream HTML matched no known layout. Snippet
// carries the first 200 characters for diagnostics; it never reaches the
// end user.
type ParsingError struct {
	Snippet string
}

func (e *ParsingError) Error() string {
	return fmt.Sprintf("struttura HTML non riconosciuta: %.200s", e.Snippet)
}

// NewParsingError trims the HTML to the diagnostic window.
func NewParsingError(html string) *ParsingError {
	if len(html) > 200 {
		html = html[:200]
	}
	return &ParsingError{Snippet: html}
}
