package repository

import (
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
)

var (
	ErrNotFound     = errors.New("document not found")
	ErrDuplicateKey = errors.New("duplicate key")
	// ErrConflict is returned when a conditional update matched nothing
	// because the document changed since it was read.
	ErrConflict = errors.New("document was modified concurrently")
	// ErrDuplicateReferralCode is the ErrDuplicateKey raised by a clash on
	// users.referral_code rather than on the username.
	ErrDuplicateReferralCode = fmt.Errorf("%w: referral_code", ErrDuplicateKey)
)

const queryTimeout = 5 * time.Second

func mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%w: %v", ErrDuplicateKey, err)
	}
	return err
}

func pageOf(page, limit int) (skip, size int64) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 50
	}
	return int64((page - 1) * limit), int64(limit)
}
