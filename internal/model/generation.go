package model

import "time"

// Generation modes.
const (
	ModePhotoToAvatar = "photo2avatar"
	ModeTextToAvatar  = "text2avatar"
)

// Generation is one row of the append-only generation audit log, written only
// for attempts that were permitted and executed.
type Generation struct {
	ID          string    `db:"id" json:"id"`
	UserID      string    `db:"user_id" json:"user_id"`
	Mode        string    `db:"mode" json:"mode"`
	InputKind   string    `db:"input_kind" json:"input_kind"`
	StoragePath *string   `db:"storage_path" json:"storage_path,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
