package opensea

type Asset struct {
	ID            int64  `json:"id"`
	TokenID       string `json:"token_id"`
	Name          string `json:"name"`
	Description   string `json:"description"`
	ImageURL      string `json:"image_url"`
	Permalink     string `json:"permalink"`
	AssetContract struct {
		Address string `json:"address"`
	} `json:"asset_contract"`
	Collection struct {
		Slug string `json:"slug"`
		Name string `json:"name"`
	} `json:"collection"`
	Owner struct {
		Address string `json:"address"`
	} `json:"owner"`
}

type Collection struct {
	Slug     string `json:"slug"`
	Name     string `json:"name"`
	ImageURL string `json:"image_url"`
	Stats    struct {
		TotalSupply float64 `json:"total_supply"`
		FloorPrice  float64 `json:"floor_price"`
	} `json:"stats"`
}

type Order struct {
	OrderHash      string `json:"order_hash"`
	Side           int    `json:"side"`
	CurrentPrice   string `json:"current_price"`
	Maker          string `json:"maker"`
	ListingTime    int64  `json:"listing_time"`
	ExpirationTime int64  `json:"expiration_time"`
}

type assetsResponse struct {
	Assets []Asset `json:"assets"`
}

type collectionsResponse struct {
	Collections []Collection `json:"collections"`
}

type ordersResponse struct {
	Orders []Order `json:"orders"`
	Count  int     `json:"count"`
}

// FulfillRequest carries the fulfillment parameters forwarded to the
// exchange endpoint.
type FulfillRequest struct {
	OrderHash        string `json:"order_hash"`
	AccountAddress   string `json:"account_address"`
	RecipientAddress string `json:"recipient_address,omitempty"`
	ReferrerAddress  string `json:"referrer_address,omitempty"`
}

type FulfillResult struct {
	TransactionHash string `json:"transaction_hash"`
	Status          string `json:"status"`
}
