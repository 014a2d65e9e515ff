package domain

import "errors"

var (
	// ErrEvaluation marca falhas operacionais da admissão (não são negações de política).
	ErrEvaluation = errors.New("admission evaluation failed")

	ErrStoreUnavailable = errors.New("rate store unavailable")
	ErrResolve          = errors.New("identity resolution failed")

	ErrInvalidPolicy = errors.New("invalid rate limit policy")

	ErrSaturated = errors.New("no slot available")
)

// IsFault informa se err é uma falha de avaliação (deve virar 500).
func IsFault(err error) bool {
	return errors.Is(err, ErrEvaluation)
}
