// internal/common/database/elasticsearch.go
package database

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"intake-service/internal/common/config"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

const esTimeout = 5 * time.Second

// ElasticsearchClient holds the search cluster handle used by the ticket index.
type ElasticsearchClient struct {
	Client *elasticsearch.Client
}

// NewElasticsearch builds a client for cfg. transport may be nil; tests pass
// an httptest-backed one.
func NewElasticsearch(cfg config.ElasticsearchConfig, transport http.RoundTripper) (*ElasticsearchClient, error) {
	addresses := cfg.Addresses
	if len(addresses) == 0 && cfg.URL != "" {
		addresses = []string{cfg.URL}
	}
	if len(addresses) == 0 {
		return nil, fmt.Errorf("elasticsearch: no addresses configured")
	}

	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses:  addresses,
		Username:   cfg.Username,
		Password:   cfg.Password,
		Transport:  transport,
		MaxRetries: 2,
	})
	if err != nil {
		return nil, fmt.Errorf("elasticsearch: create client: %w", err)
	}
	return &ElasticsearchClient{Client: es}, nil
}

func (c *ElasticsearchClient) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, esTimeout)
	defer cancel()

	res, err := c.Client.Ping(c.Client.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("elasticsearch ping: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("elasticsearch ping: %s", res.Status())
	}
	return nil
}

// EnsureIndex creates index with mapping unless it already exists. It reports
// whether the index was created by this call.
func (c *ElasticsearchClient) EnsureIndex(ctx context.Context, index string, mapping []byte) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, esTimeout)
	defer cancel()

	exists, err := esapi.IndicesExistsRequest{Index: []string{index}}.Do(ctx, c.Client)
	if err != nil {
		return false, fmt.Errorf("elasticsearch: check index %s: %w", index, err)
	}
	exists.Body.Close()

	switch exists.StatusCode {
	case http.StatusOK:
		return false, nil
	case http.StatusNotFound:
	default:
		return false, fmt.Errorf("elasticsearch: check index %s: %s", index, exists.Status())
	}

	res, err := esapi.IndicesCreateRequest{Index: index, Body: bytes.NewReader(mapping)}.Do(ctx, c.Client)
	if err != nil {
		return false, fmt.Errorf("elasticsearch: create index %s: %w", index, err)
	}
	defer res.Body.Close()

	// A concurrent replica may have won the race.
	if res.StatusCode == http.StatusBadRequest {
		return false, nil
	}
	if res.IsError() {
		return false, fmt.Errorf("elasticsearch: create index %s: %s", index, res.Status())
	}
	return true, nil
}
