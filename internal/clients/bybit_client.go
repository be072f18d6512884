package clients

import (
	"github.com/hirokisan/bybit/v2"
)

// NewBybitClient builds a Bybit client. Market data endpoints do not require
// authentication, credentials are attached only when provided.
func NewBybitClient(apiKey, apiSecret string) *bybit.Client {
	client := bybit.NewClient()
	if apiKey != "" || apiSecret != "" {
		client = client.WithAuth(apiKey, apiSecret)
	}
	return client
}
