package reporting

import (
	"context"
	"net/http"
	"time"

	"PairScout/internal/usecase"
	xhttp "PairScout/pkg/http"
	"PairScout/pkg/logger"
)

// Client pushes run summaries to an external reporting endpoint.
type Client struct {
	http *xhttp.Client
	url  string
	log  *logger.Logger
}

func New(url string, timeout time.Duration, lgr *logger.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		http: xhttp.NewClient(xhttp.WithTimeout(timeout)),
		url:  url,
		log:  lgr,
	}
}

// Report posts one discovery run summary. Failures are logged, not
// fatal: reporting never blocks the pipeline.
func (c *Client) Report(ctx context.Context, sum *usecase.RunSummary) {
	resp, err := c.http.SendRequest(ctx, &xhttp.RequestOptions{
		Method: http.MethodPost,
		URL:    c.url,
		Body:   sum,
		Headers: map[string]string{
			"Content-Type": "application/json",
		},
	})
	if err != nil {
		c.log.Warn("report discovery run", logger.Error(err))
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		c.log.Warn("report discovery run rejected",
			logger.Int("status", resp.StatusCode))
	}
}
