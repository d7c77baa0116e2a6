package openai

import (
	"context"
	"net/http"

	"kotoba/internal/services"
)

// HealthCheck verifies that the API is reachable and the key is accepted by
// listing the available models.
func (c *Client) HealthCheck(ctx context.Context) error {
	endpoint, err := c.endpoint("models")
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "openai", "health", "build url", err)
	}
	_, err = c.do(ctx, "health", func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	})
	return err
}
