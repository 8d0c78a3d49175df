package domain

// Price is an optional fiat quote for the native token.
type Price struct {
	Symbol    string  `json:"symbol"`
	USD       float64 `json:"usd,omitempty"`
	Available bool    `json:"available"`
}

// PriceUnavailable is returned when the quote could not be fetched.
func PriceUnavailable(symbol string) Price {
	return Price{Symbol: symbol}
}
