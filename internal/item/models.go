package item

import (
	"time"

	"github.com/google/uuid"
)

// Kind discriminates files from folders.
type Kind string

const (
	KindFile   Kind = "file"
	KindFolder Kind = "folder"
)

// Item is a node in a user's file tree. A nil ParentID means the item sits at
// the root. Folders never carry a size, MIME type, or storage key.
type Item struct {
	ID         uuid.UUID  `json:"id"`
	OwnerID    uuid.UUID  `json:"owner_id"`
	ParentID   *uuid.UUID `json:"parent_id,omitempty"`
	Name       string     `json:"name"`
	Kind       Kind       `json:"kind"`
	SizeBytes  int64      `json:"size_bytes"`
	MIMEType   *string    `json:"mime_type,omitempty"`
	StorageKey *string    `json:"-"`
	IsDeleted  bool       `json:"is_deleted"`
	DeletedAt  *time.Time `json:"deleted_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}
