package models

import "time"

// DailyReport is the per-day production digest exported to Sheets and sent to
// the farm manager.
type DailyReport struct {
	Date           time.Time `json:"date" bson:"date"`
	TotalLiters    float64   `json:"total_liters" bson:"total_liters"`
	RecordCount    int       `json:"record_count" bson:"record_count"`
	AverageFat     float64   `json:"average_fat" bson:"average_fat"`
	AverageProtein float64   `json:"average_protein" bson:"average_protein"`
	OpenAlerts     int       `json:"open_alerts" bson:"open_alerts"`
	CreatedAt      time.Time `json:"created_at" bson:"created_at"`
}

// OutboundMessageRequest represents a text notification to a WhatsApp recipient.
type OutboundMessageRequest struct {
	To         string `json:"to" binding:"required"`
	Message    string `json:"message" binding:"required"`
	PreviewURL bool   `json:"preview_url"`
}
