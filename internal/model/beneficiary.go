package model

import (
	"encoding/json"
	"time"
)

// Beneficiary holds the client-encrypted beneficiary document of a user.
// A user has at most one record; saving replaces it in place.
//
// Fields:
//  ID              – primary key identifier, kept across replacements.
//  UserID          – owner and unique key.
//  EncryptedData   – opaque blob produced by the client.
//  OnChainSettings – optional visibility preferences (raw JSON object).
//  CreatedAt       – first save.
//  UpdatedAt       – last replacement.
type Beneficiary struct {
	ID              string          `json:"id"`                        // beneficiaries.id
	UserID          string          `json:"userId"`                    // beneficiaries.user_id
	EncryptedData   string          `json:"encryptedData"`             // beneficiaries.encrypted_data
	OnChainSettings json.RawMessage `json:"onChainSettings,omitempty"` // beneficiaries.on_chain_settings (nullable)
	CreatedAt       time.Time       `json:"createdAt"`                 // beneficiaries.created_at
	UpdatedAt       time.Time       `json:"updatedAt"`                 // beneficiaries.updated_at
}
