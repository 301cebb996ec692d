package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"github.com/placesense/placesense/store"
)

func (d *DB) GetUserDocument(ctx context.Context, find *store.FindUserDocument) (*store.UserDocument, error) {
	if find == nil || find.UID == "" {
		return nil, errors.New("find.UID is required")
	}

	doc := store.UserDocument{UID: find.UID}
	var payload string
	err := d.db.QueryRowContext(ctx, `
		SELECT payload, created_ts, updated_ts
		FROM user_document
		WHERE uid = ?`,
		find.UID,
	).Scan(&payload, &doc.CreatedTs, &doc.UpdatedTs)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get user document")
	}

	if err := json.Unmarshal([]byte(payload), &doc.Fields); err != nil {
		return nil, errors.Wrapf(err, "malformed user document payload for %s", find.UID)
	}
	return &doc, nil
}

func (d *DB) UpsertUserDocument(ctx context.Context, upsert *store.UpsertUserDocument) (*store.UserDocument, error) {
	if upsert == nil || upsert.UID == "" {
		return nil, errors.New("upsert.UID is required")
	}

	fields := upsert.Fields
	if fields == nil {
		fields = map[string]any{}
	}
	payload, err := json.Marshal(fields)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal user document payload")
	}

	now := time.Now().Unix()
	_, err = d.db.ExecContext(ctx, `
		INSERT INTO user_document (uid, payload, created_ts, updated_ts)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (uid) DO UPDATE SET
			payload = excluded.payload,
			updated_ts = excluded.updated_ts`,
		upsert.UID, string(payload), now, now,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to upsert user document")
	}

	return d.GetUserDocument(ctx, &store.FindUserDocument{UID: upsert.UID})
}
