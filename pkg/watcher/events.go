package watcher

import "ethwallet/pkg/models"

// EventType defines the type of event being broadcast.
type EventType string

const (
	EventDetectionStarted  EventType = "detection_started"
	EventDetectionFinished EventType = "detection_finished"
	EventPredictionUpdated EventType = "prediction_updated"
	EventMarketUpdated     EventType = "market_updated"
	EventGasPriceUpdated   EventType = "gas_price_updated"
	EventTransferSubmitted EventType = "transfer_submitted"
	EventLoggedOut         EventType = "logged_out"
)

// Event represents a session event.
type Event struct {
	Type EventType   `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// Subscriber is a channel that receives events.
type Subscriber chan Event

// DetectionStarted is the payload of EventDetectionStarted.
type DetectionStarted struct {
	Generation uint64 `json:"generation"`
	Address    string `json:"address"`
}

// DetectionFinished is the payload of EventDetectionFinished.
type DetectionFinished struct {
	Generation uint64         `json:"generation"`
	Address    string         `json:"address"`
	Outcome    models.Outcome `json:"outcome"`
}

// TransferSubmitted is the payload of EventTransferSubmitted.
type TransferSubmitted struct {
	Network models.NetworkID `json:"network"`
	Hash    string           `json:"hash"`
}
