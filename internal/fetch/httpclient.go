package fetch

import (
	"context"
	"io"
	"net/http"
)

// StdClient adapts *http.Client to the HTTPDoer capability.
type StdClient struct {
	Client *http.Client
}

// NewStdClient builds a StdClient. A nil client falls back to
// http.DefaultClient.
func NewStdClient(client *http.Client) *StdClient {
	if client == nil {
		client = http.DefaultClient
	}
	return &StdClient{Client: client}
}

func (c *StdClient) Get(ctx context.Context, url string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, nil, err
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, body, nil
}
