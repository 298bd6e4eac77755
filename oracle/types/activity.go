package types

import "time"

// activity kinds
const (
	ActivityRequest   = "request"
	ActivityDuplicate = "duplicate"
	ActivityResponse  = "response"
	ActivityRejected  = "rejected"
)

// Activity is one step of the coordinator as published to observers.
type Activity struct {
	Kind          string    `json:"kind"`
	CorrelationID string    `json:"correlation_id"`
	Index         uint8     `json:"index"`
	Airline       string    `json:"airline"`
	Flight        string    `json:"flight"`
	Timestamp     string    `json:"timestamp"`
	Account       string    `json:"account,omitempty"`
	Status        string    `json:"status,omitempty"`
	Error         string    `json:"error,omitempty"`
	Time          time.Time `json:"time"`
}

type Notifier interface {
	Notify(Activity)
}

func RequestActivity(kind, correlationID string, req FlightStatusRequest) Activity {
	return Activity{
		Kind:          kind,
		CorrelationID: correlationID,
		Index:         req.Index,
		Airline:       req.Airline.Hex(),
		Flight:        req.Flight,
		Timestamp:     req.Timestamp.String(),
		Time:          time.Now(),
	}
}

func ResponseActivity(kind string, resp OracleResponse, err error) Activity {
	a := Activity{
		Kind:          kind,
		CorrelationID: resp.CorrelationID,
		Index:         resp.Index,
		Airline:       resp.Airline.Hex(),
		Flight:        resp.Flight,
		Timestamp:     resp.Timestamp.String(),
		Account:       resp.Account.Hex(),
		Status:        resp.Status.String(),
		Time:          time.Now(),
	}
	if err != nil {
		a.Error = err.Error()
	}
	return a
}
