// Package models holds the persistent and view entities shared by the
// server's repositories and services.
package models

import "time"

// User is an enrolled account. The ID is stable and immutable; everything
// else can change through "profile edit".
type User struct {
	ID          string
	Username    string
	DisplayName string
	Email       string
	PublicKey   string
	Fingerprint string
	CreatedAt   time.Time
}

// ProfileStats is the aggregate shown by the "profile" command.
type ProfileStats struct {
	Username       string
	DisplayName    string
	Email          string
	JoinedAt       time.Time
	EetCount       int64
	FollowingCount int64
	FollowerCount  int64
}
