package sqlite

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"github.com/placesense/placesense/store"
)

func (d *DB) UpsertPlaceCache(ctx context.Context, upsert *store.UpsertPlaceCache) (*store.PlaceCacheEntry, error) {
	if upsert == nil || upsert.PlaceID == "" {
		return nil, errors.New("upsert.PlaceID is required")
	}

	_, err := d.db.ExecContext(ctx, `
		INSERT INTO place_cache (place_id, payload, updated_ts)
		VALUES (?, ?, ?)
		ON CONFLICT (place_id) DO UPDATE SET
			payload = excluded.payload,
			updated_ts = excluded.updated_ts`,
		upsert.PlaceID, string(upsert.Payload), upsert.UpdatedTs,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to upsert place cache entry")
	}

	return &store.PlaceCacheEntry{
		PlaceID:   upsert.PlaceID,
		Payload:   upsert.Payload,
		UpdatedTs: upsert.UpdatedTs,
	}, nil
}

func (d *DB) GetPlaceCache(ctx context.Context, find *store.FindPlaceCache) (*store.PlaceCacheEntry, error) {
	if find == nil || find.PlaceID == "" {
		return nil, errors.New("find.PlaceID is required")
	}

	entry := store.PlaceCacheEntry{PlaceID: find.PlaceID}
	var payload string
	err := d.db.QueryRowContext(ctx, `
		SELECT payload, updated_ts
		FROM place_cache
		WHERE place_id = ?`,
		find.PlaceID,
	).Scan(&payload, &entry.UpdatedTs)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get place cache entry")
	}

	entry.Payload = []byte(payload)
	return &entry, nil
}

func (d *DB) DeletePlaceCacheBefore(ctx context.Context, beforeTs int64) (int64, error) {
	result, err := d.db.ExecContext(ctx, "DELETE FROM place_cache WHERE updated_ts < ?", beforeTs)
	if err != nil {
		return 0, errors.Wrap(err, "failed to delete expired place cache entries")
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "failed to count deleted place cache entries")
	}
	return affected, nil
}
