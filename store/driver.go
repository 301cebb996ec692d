package store

import (
	"context"
	"database/sql"
)

// Driver is an interface for store driver.
// It contains all methods that store database driver should implement.
type Driver interface {
	GetDB() *sql.DB
	Close() error

	IsInitialized(ctx context.Context) (bool, error)
	Migrate(ctx context.Context) error

	// UserDocument model related methods.
	GetUserDocument(ctx context.Context, find *FindUserDocument) (*UserDocument, error)
	UpsertUserDocument(ctx context.Context, upsert *UpsertUserDocument) (*UserDocument, error)

	// PlaceCache model related methods.
	UpsertPlaceCache(ctx context.Context, upsert *UpsertPlaceCache) (*PlaceCacheEntry, error)
	GetPlaceCache(ctx context.Context, find *FindPlaceCache) (*PlaceCacheEntry, error)
	DeletePlaceCacheBefore(ctx context.Context, beforeTs int64) (int64, error)
}
