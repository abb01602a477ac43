package db

import (
	"errors"
	"fmt"

	"keyward/internal/domain"

	"gorm.io/gorm"
)

var errDBUnavailable = errors.New("db unavailable")

func translateCustodyError(err error, identity domain.Identity, keyID string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%w: identity %q key %q", domain.ErrKeyNotFound, identity, keyID)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: identity %q key %q", domain.ErrDuplicateKey, identity, keyID)
	default:
		return err
	}
}
