// Package notify abstracts the external push-messaging channel that
// delivers winner notifications.  The channel is strictly best
// effort: delivery failures are logged and dropped, never retried,
// and never affect the durability of the grant they announce.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// PushSender delivers an image notification to a member over the
// push-messaging channel.
type PushSender interface {
	SendImageNotification(ctx context.Context, memberID uint64, imageURL string) error
}

// HTTPPushSender posts notifications to the push-messaging gateway.
// The gateway owns templating, audience handling and retries on its
// side; from here each notification gets exactly one attempt.
type HTTPPushSender struct {
	endpoint string
	client   *http.Client
}

// NewHTTPPushSender returns a sender posting to the given endpoint.
func NewHTTPPushSender(endpoint string) *HTTPPushSender {
	return &HTTPPushSender{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// SendImageNotification posts a single image message for the member.
// A non-2xx response is reported as an error; the caller decides
// whether to log or drop it.
func (s *HTTPPushSender) SendImageNotification(ctx context.Context, memberID uint64, imageURL string) error {
	payload, err := json.Marshal(map[string]interface{}{
		"member_id": memberID,
		"type":      "image",
		"image_url": imageURL,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("push gateway returned %s", resp.Status)
	}
	return nil
}
