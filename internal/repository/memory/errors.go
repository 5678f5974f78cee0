package memory

import (
	"fmt"

	"github.com/Kerhoff/custos/internal/models"
)

func errUserNotFound(id int64) error {
	return fmt.Errorf("user with ID %d not found", id)
}

func errInvalidRank(r models.Rank) error {
	return fmt.Errorf("invalid rank %d", int(r))
}
