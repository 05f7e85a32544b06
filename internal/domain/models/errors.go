package models

import "errors"

var (
	// ErrSymbolNotFound means the data source has no rows for the symbol.
	ErrSymbolNotFound = errors.New("symbol not found")
	// ErrModelNotLoaded means the predictor artifacts are unavailable.
	ErrModelNotLoaded = errors.New("model or scaler not loaded")
	// ErrUserExists is returned on a duplicate registration.
	ErrUserExists = errors.New("user already exists")
	// ErrUserNotFound is returned by lookups that match no row.
	ErrUserNotFound = errors.New("user not found")
)
