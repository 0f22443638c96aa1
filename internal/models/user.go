// Package models holds the plain data types shared across the Store Gateway,
// the Pipeline, and the Admission API. These are transport- and
// storage-agnostic: no struct here knows about pgx or JSON wire shapes beyond
// the tags needed to round-trip through Postgres and the HTTP API.
package models

import "time"

// UserStatus is the lifecycle state of a User.
type UserStatus string

// User statuses.
const (
	UserStatusPending UserStatus = "pending"
	UserStatusActive  UserStatus = "active"
)

// User is a chat/web client identity.
type User struct {
	ID             int64      `json:"id"`
	ExternalChatID string     `json:"external_chat_id"`
	DisplayName    string     `json:"display_name"`
	Status         UserStatus `json:"status"`
	InviteRef      *string    `json:"invite_ref,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}
