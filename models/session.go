package models

// Session is what /validate_token answers: the user behind an access token
// and the secondary token used to authenticate on the WebSocket.
type Session struct {
	User    User   `json:"user"`
	WSToken string `json:"ws_token"`
}

// SalesReport is the payload of GET /reports/sales.
type SalesReport struct {
	StartDate string      `json:"start_date"`
	EndDate   string      `json:"end_date"`
	Orders    []Order     `json:"orders"`
	Days      []DailySale `json:"days"`
	Total     float64     `json:"total"`
}

type DailySale struct {
	Date   string  `json:"date"`
	Orders int     `json:"orders"`
	Total  float64 `json:"total"`
}
