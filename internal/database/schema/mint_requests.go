package schema

import "time"

// MintRequest tracks every mint attempt keyed by the contract/token pair so a
// retry of the same token can be answered from the ledger instead of the chain.
type MintRequest struct {
	MintKey      string     `gorm:"type:varchar(255);uniqueIndex;notNull" json:"mint_key"` // contract + ":" + token_id
	Contract     string     `gorm:"type:varchar(255);notNull" json:"contract"`
	TokenID      string     `gorm:"type:varchar(255);notNull" json:"token_id"`
	CollectionID string     `gorm:"type:varchar(255)" json:"collection_id"`
	Owner        string     `gorm:"type:varchar(255)" json:"owner"`
	Status       string     `gorm:"type:varchar(32);notNull;default:'pending'" json:"status"` // pending, submitted, confirmed, failed
	TxHash       *string    `gorm:"type:varchar(255)" json:"tx_hash"`
	BlockHash    *string    `gorm:"type:varchar(255)" json:"block_hash"`
	Error        *string    `gorm:"type:text" json:"error"`
	ConfirmedAt  *time.Time `json:"confirmed_at"`
	Base
}
