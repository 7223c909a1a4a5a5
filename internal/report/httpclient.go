package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/kotoba-labs/classroom-engine/internal/aggregate"
)

// HTTPClient pushes student reports to an external gradebook endpoint as
// JSON. The endpoint is expected to upsert on (classroom_id, user_id).
type HTTPClient struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{BaseURL: baseURL, Token: token, HTTP: http.DefaultClient}
}

func (c *HTTPClient) PushStudentReport(ctx context.Context, classroomID string, rep aggregate.StudentReport) error {
	payload, err := json.Marshal(struct {
		ClassroomID string `json:"classroom_id"`
		aggregate.StudentReport
	}{ClassroomID: classroomID, StudentReport: rep})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/reports", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("gradebook push: %s: %s", resp.Status, body)
	}
	return nil
}
