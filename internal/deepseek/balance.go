package deepseek

import (
	"context"
	"net/http"

	"lexichat/internal/core"
	"lexichat/internal/llmclient"
)

// GetBalance implements core.ChatClient. It never returns a failure to the
// caller directly: errors come back inside the result so startup diagnostics
// cannot abort the program.
func (c *Client) GetBalance(ctx context.Context) core.BalanceResult {
	ctx, cancel := context.WithTimeout(ctx, c.balanceTimeout)
	defer cancel()

	var fields map[string]any
	err := c.client.Do(ctx, llmclient.Request{
		Operation: "balance",
		Method:    http.MethodGet,
		URL:       c.balanceEndpoint,
		Headers:   map[string]string{"Accept": "application/json"},
	}, &fields)
	if err != nil {
		c.logger.WarnContext(ctx, "balance query failed", "error", err)
		return core.BalanceResult{Err: err}
	}
	if fields == nil {
		// A literal JSON null decodes without error.
		fields = map[string]any{}
	}
	return core.BalanceResult{Fields: fields}
}
