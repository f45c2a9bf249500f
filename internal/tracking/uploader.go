package tracking

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HTTPUploader talks to the API server on behalf of a driver device.
type HTTPUploader struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

func NewHTTPUploader(baseURL, token string) *HTTPUploader {
	return &HTTPUploader{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		Client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (u *HTTPUploader) post(ctx context.Context, path string, body interface{}) error {
	var payload io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		payload = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.BaseURL+path, payload)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+u.Token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := u.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("POST %s: %s: %s", path, resp.Status, strings.TrimSpace(string(msg)))
	}
	return nil
}

func (u *HTTPUploader) UploadLocation(ctx context.Context, driverID string, s Sample) error {
	return u.post(ctx, "/drivers/"+url.PathEscape(driverID)+"/locations", s)
}

func (u *HTTPUploader) SetTracking(ctx context.Context, driverID string, enabled bool) error {
	action := "stop"
	if enabled {
		action = "start"
	}
	return u.post(ctx, "/drivers/"+url.PathEscape(driverID)+"/tracking/"+action, nil)
}
