package schema

import "time"

type Trade struct {
	TradeID      string     `gorm:"type:varchar(255);uniqueIndex;notNull" json:"trade_id"` // collection_id + token_id + trade timestamp
	CollectionID string     `gorm:"type:varchar(255);notNull;index" json:"collection_id"`
	TokenID      string     `gorm:"type:varchar(255);notNull" json:"token_id"`
	Price        string     `gorm:"type:varchar(255);notNull" json:"price"`
	QuoteID      int        `gorm:"type:int" json:"quote_id"`
	Seller       string     `gorm:"type:varchar(255);index" json:"seller"` // SS58 encoded
	Buyer        string     `gorm:"type:varchar(255);index" json:"buyer"`
	BlockNumber  *uint64    `gorm:"type:bigint" json:"block_number"`
	TradeDate    *time.Time `json:"trade_date"`
	Metadata     JSONMap    `gorm:"type:json" json:"metadata"`
	Base
}
