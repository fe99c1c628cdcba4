package repository

import (
	"math/big"

	"github.com/diagnosis/rental-bookings/services/bookings/internal/domain"
)

// Amounts travel to and from NUMERIC columns as text so no precision is lost.

func parseNullable(s *string) (*big.Int, error) {
	if s == nil {
		return nil, nil
	}
	return domain.ParseAmount(*s)
}

func nullableAmount(v *big.Int) *string {
	if v == nil {
		return nil
	}
	s := v.String()
	return &s
}
