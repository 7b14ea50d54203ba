package queue

import (
	"errors"
	"fmt"

	"github.com/alexander-akhmetov/mat/internal/domain"
)

// ErrNotFound is returned when an id is not in the queue.
var ErrNotFound = errors.New("item not in queue")

// TransitionError reports an illegal status change.
type TransitionError struct {
	ID   string
	From domain.Status
	To   domain.Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("item %s: cannot move from %s to %s", e.ID, e.From, e.To)
}
