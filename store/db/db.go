// Package db provides the store driver factory.
package db

import (
	"github.com/pkg/errors"

	"github.com/hrygo/catgpt/internal/profile"
	"github.com/hrygo/catgpt/store"
	"github.com/hrygo/catgpt/store/db/sqlite"
)

// NewDBDriver creates the store driver for the configured backend. Only the
// embedded sqlite backend is supported; the single-writer transaction
// discipline depends on it.
func NewDBDriver(p *profile.Profile) (store.Driver, error) {
	driver, err := sqlite.NewDB(p)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create db driver")
	}
	return driver, nil
}
