package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"petalsync/migrate/internal/fsvalue"
)

const defaultBaseURL = "https://firestore.googleapis.com/v1"

// FirestoreReader queries the v3 store over the Firestore REST API using
// structured queries, decoding typed field values via fsvalue.
type FirestoreReader struct {
	projectID string
	baseURL   string
	client    *http.Client
	tokens    *tokenSource
}

func NewFirestore(projectID string, account ServiceAccount) *FirestoreReader {
	client := &http.Client{Timeout: 30 * time.Second}
	return &FirestoreReader{
		projectID: projectID,
		baseURL:   defaultBaseURL,
		client:    client,
		tokens:    newTokenSource(account, client),
	}
}

type collectionSelector struct {
	CollectionID string `json:"collectionId"`
}

type fieldReference struct {
	FieldPath string `json:"fieldPath"`
}

type fieldFilter struct {
	Field fieldReference `json:"field"`
	Op    string         `json:"op"`
	Value fsvalue.Value  `json:"value"`
}

type compositeFilter struct {
	Op      string        `json:"op"`
	Filters []queryFilter `json:"filters"`
}

type queryFilter struct {
	FieldFilter     *fieldFilter     `json:"fieldFilter,omitempty"`
	CompositeFilter *compositeFilter `json:"compositeFilter,omitempty"`
}

type queryOrder struct {
	Field     fieldReference `json:"field"`
	Direction string         `json:"direction"`
}

type structuredQuery struct {
	From    []collectionSelector `json:"from"`
	Where   *queryFilter         `json:"where,omitempty"`
	OrderBy []queryOrder         `json:"orderBy,omitempty"`
	Offset  int                  `json:"offset,omitempty"`
	Limit   int                  `json:"limit,omitempty"`
}

type runQueryRequest struct {
	StructuredQuery structuredQuery `json:"structuredQuery"`
}

type restDocument struct {
	Name       string                   `json:"name"`
	Fields     map[string]fsvalue.Value `json:"fields"`
	CreateTime time.Time                `json:"createTime"`
	UpdateTime time.Time                `json:"updateTime"`
}

type runQueryItem struct {
	Document *restDocument `json:"document"`
}

var restOps = map[string]string{
	"==": "EQUAL",
	"<":  "LESS_THAN",
	"<=": "LESS_THAN_OR_EQUAL",
	">":  "GREATER_THAN",
	">=": "GREATER_THAN_OR_EQUAL",
}

func (f *FirestoreReader) Query(ctx context.Context, collection string, opts Options) ([]Document, error) {
	query := structuredQuery{
		From:   []collectionSelector{{CollectionID: collection}},
		Offset: opts.Offset,
		Limit:  opts.Limit,
	}

	filters := make([]queryFilter, 0, len(opts.Filters))
	for _, filter := range opts.Filters {
		op, ok := restOps[filter.Op]
		if !ok {
			return nil, fmt.Errorf("unsupported filter op %q", filter.Op)
		}
		filters = append(filters, queryFilter{FieldFilter: &fieldFilter{
			Field: fieldReference{FieldPath: filter.Field},
			Op:    op,
			Value: fsvalue.Encode(filter.Value),
		}})
	}
	switch len(filters) {
	case 0:
	case 1:
		query.Where = &filters[0]
	default:
		query.Where = &queryFilter{CompositeFilter: &compositeFilter{Op: "AND", Filters: filters}}
	}

	if opts.OrderBy != "" {
		direction := "ASCENDING"
		if opts.Desc {
			direction = "DESCENDING"
		}
		query.OrderBy = []queryOrder{{Field: fieldReference{FieldPath: opts.OrderBy}, Direction: direction}}
	}

	body, err := json.Marshal(runQueryRequest{StructuredQuery: query})
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/projects/%s/databases/(default)/documents:runQuery", f.baseURL, f.projectID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	token, err := f.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("source token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("runQuery %s: status %d: %s", collection, resp.StatusCode, truncate(payload, 300))
	}

	var items []runQueryItem
	if err := json.Unmarshal(payload, &items); err != nil {
		return nil, fmt.Errorf("runQuery %s: decode: %w", collection, err)
	}

	docs := make([]Document, 0, len(items))
	for _, item := range items {
		if item.Document == nil {
			continue
		}
		docs = append(docs, Document{
			ID:         documentID(item.Document.Name),
			Fields:     fsvalue.DecodeFields(item.Document.Fields),
			CreateTime: item.Document.CreateTime,
			UpdateTime: item.Document.UpdateTime,
		})
	}
	return docs, nil
}

func documentID(name string) string {
	if i := strings.LastIndex(name, "/"); i >= 0 {
		return name[i+1:]
	}
	return name
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
