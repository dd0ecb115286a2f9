package repository

import (
	"fmt"

	"github.com/splax/taskhub/internal/domain"
)

// Storage errors wrap the domain kinds so callers can classify them with
// errors.Is(err, domain.ErrX).
var (
	// ErrNotFound indicates an entity was not located.
	ErrNotFound = fmt.Errorf("repository: %w", domain.ErrNotFound)
	// ErrConflict indicates a uniqueness constraint was hit.
	ErrConflict = fmt.Errorf("repository: %w", domain.ErrConflict)
	// ErrInvalidArgument indicates the store rejected a value.
	ErrInvalidArgument = fmt.Errorf("repository: invalid argument: %w", domain.ErrValidation)
	// ErrUnavailable indicates the store could not serve the call in time.
	ErrUnavailable = fmt.Errorf("repository: %w", domain.ErrUnavailable)
)
