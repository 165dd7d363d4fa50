package dispatch

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"
)

// PushDispatcher tries the websocket session first and falls back to
// posting the payload to a push-provider endpoint (driver app backend).
type PushDispatcher struct {
	Endpoint string
	Key      string
	Client   *http.Client
	WS       *WSRegistry
}

func NewPushDispatcher(endpoint, key string, ws *WSRegistry) *PushDispatcher {
	return &PushDispatcher{Endpoint: endpoint, Key: key, Client: &http.Client{Timeout: 3 * time.Second}, WS: ws}
}

func (p *PushDispatcher) OfferRide(driverID string, a Assignment) error {
	if p.WS != nil {
		if err := p.WS.OfferRide(driverID, a); err == nil {
			return nil
		}
	}
	return p.post(driverID, "assignment", a)
}

func (p *PushDispatcher) NotifyCancel(driverID string, c Cancellation) error {
	if p.WS != nil {
		if err := p.WS.NotifyCancel(driverID, c); err == nil {
			return nil
		}
	}
	return p.post(driverID, "cancelled", c)
}

func (p *PushDispatcher) post(driverID, event string, payload any) error {
	if p.Endpoint == "" {
		return nil
	}
	body := map[string]any{"driver_id": driverID, "event": event, "data": payload}
	b, _ := json.Marshal(body)
	req, err := http.NewRequest(http.MethodPost, p.Endpoint, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if p.Key != "" {
		req.Header.Set("Authorization", "Bearer "+p.Key)
	}
	resp, err := p.Client.Do(req)
	if err != nil {
		return err
	}
	_ = resp.Body.Close()
	return nil
}
