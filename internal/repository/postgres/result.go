package postgres

import (
	"database/sql"
	"fmt"

	"github.com/jwalitptl/vip-booking/internal/repository"
)

func requireRow(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return repository.ErrNotFound
	}
	return nil
}
