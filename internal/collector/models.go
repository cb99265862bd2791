package collector

import (
	"fmt"

	"beacon/internal/constants"
	"beacon/internal/event"
	"beacon/internal/store"
)

// Envelope is one ingest batch: the device/runtime context plus the raw
// events recorded against it. The same shape arrives over HTTP and over the
// raw-events topic.
type Envelope struct {
	DeviceID     string `json:"device_id"`
	ClientID     string `json:"client_id"`
	SDKVersion   string `json:"sdk_version"`
	AppVersion   string `json:"app_version"`
	FirstRun     bool   `json:"first_run"`
	CurrencyCode string `json:"currency_code"`
	PageURL      string `json:"page_url"`

	Location              *store.Location              `json:"location,omitempty"`
	IntegrationAttributes map[string]map[string]string `json:"integration_attributes,omitempty"`
	SessionAttributes     map[string]interface{}       `json:"session_attributes,omitempty"`

	Events []event.RawEvent `json:"events"`
}

func (e *Envelope) Validate() error {
	if e.DeviceID == "" {
		return fmt.Errorf("device_id is required")
	}
	if len(e.Events) == 0 {
		return fmt.Errorf("events must not be empty")
	}
	if len(e.Events) > constants.MaxBatchEvents {
		return fmt.Errorf("batch exceeds %d events", constants.MaxBatchEvents)
	}
	return nil
}

// Result summarizes what happened to each event in a batch.
type Result struct {
	Accepted int `json:"accepted"`
	Filtered int `json:"filtered"`
	Dropped  int `json:"dropped"`
	Failed   int `json:"failed"`
}
