package report

// MintPayload is the record handed to the loss-certificate minting step.
// All amounts are fixed two-place strings.
type MintPayload struct {
	WalletAddress  string `json:"wallet_address"`
	Ticker         string `json:"ticker"`
	AvgBuyPrice    string `json:"avg_buyprice"`
	AvgSellPrice   string `json:"avg_sellprice"`
	CurrentPrice   string `json:"current_price"`
	TotalBuyPrice  string `json:"total_buyprice"`
	TotalSellPrice string `json:"total_sellprice"`
}

// Mint builds the mint payload for one row.
func Mint(wallet string, r Row) MintPayload {
	return MintPayload{
		WalletAddress:  wallet,
		Ticker:         r.Symbol,
		AvgBuyPrice:    r.AvgBuyPrice.StringFixed(Places),
		AvgSellPrice:   r.AvgSellPrice.StringFixed(Places),
		CurrentPrice:   r.CurrentPrice.StringFixed(Places),
		TotalBuyPrice:  r.BoughtValue.StringFixed(Places),
		TotalSellPrice: r.SoldValue.StringFixed(Places),
	}
}
