package models

// Envelope is the wire frame sent to websocket subscribers. Data holds the
// full post-mutation representation of the affected entity, never a diff.
type Envelope struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// Frame types shared by the replay snapshot and live updates.
const (
	FrameTypeCandle       = "candle"
	FrameTypeTrade        = "trade"
	FrameTypeBook         = "book"
	FrameTypeFunding      = "funding"
	FrameTypeLiquidation  = "liquidation"
	FrameTypeOpenInterest = "open_interest"
	FrameTypePing         = "ping"
)
