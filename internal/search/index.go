// Package search maintains the admin ticket search index in Elasticsearch.
// The index is a secondary view: the store stays authoritative and callers
// treat every indexing failure as non-fatal.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"intake-service/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

const (
	DefaultIndex = "intake-tickets"
	maxResults   = 100
	opTimeout    = 2 * time.Second
)

// Mapping is the ticket index definition applied at startup.
var Mapping = []byte(`{
  "mappings": {
    "properties": {
      "applicantId": {"type": "keyword"},
      "username":    {"type": "text", "fields": {"raw": {"type": "keyword"}}},
      "email":       {"type": "text", "fields": {"raw": {"type": "keyword"}}},
      "status":      {"type": "keyword"},
      "submittedAt": {"type": "date"},
      "answers": {
        "properties": {
          "questionId": {"type": "keyword"},
          "title":      {"type": "text"},
          "answer":     {"type": "text"}
        }
      }
    }
  }
}`)

// Indexer is implemented by ElasticIndexer and NoopIndexer.
type Indexer interface {
	IndexTicket(ctx context.Context, view models.TicketView) error
	RemoveTicket(ctx context.Context, ticketID string) error
	Search(ctx context.Context, query string, limit int) ([]Hit, error)
}

// Hit is a search result row.
type Hit struct {
	TicketID    string        `json:"ticketId"`
	ApplicantID string        `json:"applicantId"`
	Username    string        `json:"username"`
	Status      models.Status `json:"status"`
	SubmittedAt time.Time     `json:"submittedAt"`
}

type answerDoc struct {
	QuestionID string `json:"questionId"`
	Title      string `json:"title,omitempty"`
	Answer     string `json:"answer"`
}

type ticketDoc struct {
	ApplicantID string        `json:"applicantId"`
	Username    string        `json:"username"`
	Email       string        `json:"email"`
	Status      models.Status `json:"status"`
	SubmittedAt time.Time     `json:"submittedAt"`
	Answers     []answerDoc   `json:"answers"`
}

func toDoc(v models.TicketView) ticketDoc {
	doc := ticketDoc{
		ApplicantID: v.Applicant.ID,
		Username:    v.Applicant.Username,
		Email:       v.Applicant.Email,
		Status:      v.Status,
		SubmittedAt: v.SubmittedAt,
		Answers:     make([]answerDoc, 0, len(v.Answers)),
	}
	for _, a := range v.Answers {
		doc.Answers = append(doc.Answers, answerDoc{QuestionID: a.QuestionID, Title: a.Title, Answer: a.Answer})
	}
	return doc
}

type ElasticIndexer struct {
	client *elasticsearch.Client
	index  string
}

func NewElasticIndexer(client *elasticsearch.Client, index string) *ElasticIndexer {
	if index == "" {
		index = DefaultIndex
	}
	return &ElasticIndexer{client: client, index: index}
}

func (e *ElasticIndexer) IndexTicket(ctx context.Context, view models.TicketView) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	body, err := json.Marshal(toDoc(view))
	if err != nil {
		return fmt.Errorf("encode ticket document: %w", err)
	}

	req := esapi.IndexRequest{
		Index:      e.index,
		DocumentID: view.ID,
		Body:       bytes.NewReader(body),
		Refresh:    "true",
	}
	res, err := req.Do(ctx, e.client)
	if err != nil {
		return fmt.Errorf("index ticket %s: %w", view.ID, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("index ticket %s: %s", view.ID, res.Status())
	}
	return nil
}

// RemoveTicket treats a missing document as already removed.
func (e *ElasticIndexer) RemoveTicket(ctx context.Context, ticketID string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	req := esapi.DeleteRequest{
		Index:      e.index,
		DocumentID: ticketID,
		Refresh:    "true",
	}
	res, err := req.Do(ctx, e.client)
	if err != nil {
		return fmt.Errorf("remove ticket %s: %w", ticketID, err)
	}
	defer res.Body.Close()

	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("remove ticket %s: %s", ticketID, res.Status())
	}
	return nil
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			ID     string    `json:"_id"`
			Source ticketDoc `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// Search matches query against applicant identity and answer text, newest
// submission first.
func (e *ElasticIndexer) Search(ctx context.Context, query string, limit int) ([]Hit, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	body, err := json.Marshal(buildQuery(query, clampLimit(limit)))
	if err != nil {
		return nil, err
	}

	req := esapi.SearchRequest{
		Index: []string{e.index},
		Body:  bytes.NewReader(body),
	}
	res, err := req.Do(ctx, e.client)
	if err != nil {
		return nil, fmt.Errorf("search tickets: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return []Hit{}, nil
	}
	if res.IsError() {
		return nil, fmt.Errorf("search tickets: %s", res.Status())
	}

	var r searchResponse
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	hits := make([]Hit, 0, len(r.Hits.Hits))
	for _, h := range r.Hits.Hits {
		hits = append(hits, Hit{
			TicketID:    h.ID,
			ApplicantID: h.Source.ApplicantID,
			Username:    h.Source.Username,
			Status:      h.Source.Status,
			SubmittedAt: h.Source.SubmittedAt,
		})
	}
	return hits, nil
}

func buildQuery(query string, limit int) map[string]interface{} {
	var q map[string]interface{}
	if strings.TrimSpace(query) == "" {
		q = map[string]interface{}{"match_all": map[string]interface{}{}}
	} else {
		q = map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  query,
				"fields": []string{"username^3", "email^2", "status", "answers.title", "answers.answer"},
			},
		}
	}
	return map[string]interface{}{
		"size":  limit,
		"query": q,
		"sort":  []interface{}{map[string]interface{}{"submittedAt": map[string]string{"order": "desc"}}},
	}
}

func clampLimit(limit int) int {
	if limit < 1 {
		return 20
	}
	if limit > maxResults {
		return maxResults
	}
	return limit
}

// NoopIndexer is used when no Elasticsearch address is configured.
type NoopIndexer struct{}

func (NoopIndexer) IndexTicket(context.Context, models.TicketView) error { return nil }
func (NoopIndexer) RemoveTicket(context.Context, string) error           { return nil }
func (NoopIndexer) Search(context.Context, string, int) ([]Hit, error)   { return []Hit{}, nil }
