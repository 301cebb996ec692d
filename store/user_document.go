package store

// UserDocument is the raw per-user behavioral document.
// Fields is an open key/value map: the upstream writers append interaction
// entries, bump counters and accumulate tag affinities without the store
// knowing the full shape. The fingerprint layer owns decoding.
type UserDocument struct {
	UID       string
	Fields    map[string]any
	CreatedTs int64
	UpdatedTs int64
}

// FindUserDocument specifies the conditions for finding a user document.
type FindUserDocument struct {
	UID string
}

// UpsertUserDocument specifies the data for upserting a user document.
type UpsertUserDocument struct {
	UID    string
	Fields map[string]any
}

// DocumentPatch is a partial update against a user document.
// Semantics follow the vendor document stores this layer stands in for:
// Set overwrites scalar fields, Increment adds to integer fields and
// Append extends array fields.
type DocumentPatch struct {
	Set       map[string]any
	Increment map[string]int64
	Append    map[string][]any
}
