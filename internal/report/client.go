// Package report talks to the local screenshot service that turns post links into a document.
package report

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"

	"github.com/ibeckermayer/xharvest/internal/types"
)

type Client struct {
	http *resty.Client
}

type generateRequest struct {
	URLs  []string `json:"urls"`
	JobID string   `json:"jobId"`
}

// NewClient creates a client for the service at baseURL.
// No timeout is set: rendering one screenshot per link can take many minutes.
func NewClient(baseURL string) *Client {
	client := resty.New()
	client.SetBaseURL(strings.TrimRight(baseURL, "/"))
	client.SetHeader("Content-Type", "application/json")
	return &Client{http: client}
}

// Generate requests a document for links. Any status other than 200 is an ExternalServiceError.
func (c *Client) Generate(ctx context.Context, links []string, jobID string) ([]byte, error) {
	logrus.WithField("job", jobID).Infof("Requesting document for %d links", len(links))

	res, err := c.http.R().
		SetContext(ctx).
		SetBody(generateRequest{URLs: links, JobID: jobID}).
		Post("/generate-word")
	if err != nil {
		return nil, fmt.Errorf("screenshot service unreachable: %w", err)
	}

	if res.StatusCode() != 200 {
		return nil, &types.ExternalServiceError{Status: res.StatusCode(), Body: strings.TrimSpace(res.String())}
	}
	return res.Body(), nil
}
