package facegate

import (
	"errors"

	"github.com/hupe1980/facegate/ledger"
	"github.com/hupe1980/facegate/template"
)

var (
	// ErrEmptyIdentity is returned when an identity is empty or whitespace.
	// Fully recoverable; no state was mutated.
	ErrEmptyIdentity = template.ErrEmptyIdentity

	// ErrInvalidEmbedding is returned when an embedding has the wrong
	// dimensionality or contains non-finite values. Fully recoverable;
	// no state was mutated. The cause is available via errors.Unwrap.
	ErrInvalidEmbedding = template.ErrInvalidEmbedding

	// ErrThrottled is returned when a login attempt exceeds the
	// configured rate limit.
	ErrThrottled = errors.New("login attempts throttled")

	// ErrClosed is returned when operating on a closed Facegate.
	ErrClosed = errors.New("facegate is closed")
)

// translateError unifies subpackage errors into the facade's error
// taxonomy so callers only depend on facegate sentinels.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ledger.ErrEmptyIdentity) {
		return ErrEmptyIdentity
	}
	return err
}
