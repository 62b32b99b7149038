package service

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// ParseBasketID splits an external basket identifier "{shop}-{key}"
func ParseBasketID(id string) (int64, string, error) {
	shopPart, key, ok := strings.Cut(id, "-")
	if !ok {
		return 0, "", fmt.Errorf("%q: %w", id, ErrMalformedBasketID)
	}

	shopID, err := strconv.ParseInt(shopPart, 10, 64)
	if err != nil || shopID <= 0 {
		return 0, "", fmt.Errorf("%q: %w", id, ErrMalformedBasketID)
	}

	if len(key) != 32 {
		return 0, "", fmt.Errorf("%q: %w", id, ErrMalformedBasketID)
	}
	for _, r := range key {
		if !strings.ContainsRune("0123456789abcdef", r) {
			return 0, "", fmt.Errorf("%q: %w", id, ErrMalformedBasketID)
		}
	}

	return shopID, key, nil
}

// newBasketKey returns a dashless lowercase UUID
func newBasketKey() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
