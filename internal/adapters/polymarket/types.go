package polymarket

// types.go — wire types del CLOB y de Gamma.

import (
	"encoding/json"
	"strconv"
)

type bookResponse struct {
	Asks []bookLevel `json:"asks"`
	Bids []bookLevel `json:"bids"`
}

type bookLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

type gammaMarketsResponse []gammaMarket

type gammaMarket struct {
	ConditionID  string `json:"conditionId"`
	Slug         string `json:"slug"`
	ClobTokenIDs string `json:"clobTokenIds"` // JSON array codificado como string
	Outcomes     string `json:"outcomes"`     // ídem, p.ej. `["Up","Down"]`
	NegRisk      bool   `json:"negRisk"`
	TickSize     string `json:"orderPriceMinTickSize"`
	Closed       bool   `json:"closed"`
}

type clobOrderRequest struct {
	TokenID   string  `json:"token_id"`
	Price     float64 `json:"price"`
	Size      float64 `json:"size"`
	Side      string  `json:"side"`      // BUY | SELL
	OrderType string  `json:"orderType"` // GTC | FAK
	ClientID  string  `json:"client_id"`
	NegRisk   bool    `json:"neg_risk"`
}

type clobOrderResponse struct {
	Success  bool   `json:"success"`
	ErrorMsg string `json:"errorMsg"`
	OrderID  string `json:"orderID"`
	Status   string `json:"status"`
}

type clobOrderStatus struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	SizeMatched string `json:"size_matched"`
}

type balanceAllowanceResponse struct {
	Balance string `json:"balance"` // micro-unidades (1e6)
}

// tokenIDs decodifica el array anidado de clobTokenIds.
func (g gammaMarket) tokenIDs() []string {
	var ids []string
	if err := json.Unmarshal([]byte(g.ClobTokenIDs), &ids); err != nil {
		return nil
	}
	return ids
}

// outcomeNames decodifica el array anidado de outcomes.
func (g gammaMarket) outcomeNames() []string {
	var names []string
	if err := json.Unmarshal([]byte(g.Outcomes), &names); err != nil {
		return nil
	}
	return names
}

// parseFloat convierte los números-como-string del CLOB. Devuelve 0 si no parsea.
func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

// parseMicro convierte micro-unidades (string) a unidades.
func parseMicro(s string) float64 {
	return parseFloat(s) / 1_000_000
}
