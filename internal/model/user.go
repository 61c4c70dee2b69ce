package model

import "time"

// User represents a wallet holder of the platform as stored in the
// `users` table. The URSOL balance is kept as a fixed two-decimal
// string so that it round-trips through JSON and DECIMAL columns
// without float drift.
//
// Fields:
//  ID                – primary key identifier of the user.
//  Address           – unique wallet address.
//  UrsolBalance      – spendable token balance ("15750.00").
//  IsWorldIDVerified – whether the user passed a World ID proof.
//  CreatedAt         – timestamp of creation.
type User struct {
	ID                string    `json:"id"`                // users.id
	Address           string    `json:"address"`           // users.address
	UrsolBalance      string    `json:"ursolBalance"`      // users.ursol_balance
	IsWorldIDVerified bool      `json:"isWorldIdVerified"` // users.is_world_id_verified
	CreatedAt         time.Time `json:"createdAt"`         // users.created_at
}
