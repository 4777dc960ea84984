package source

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/golang-jwt/jwt/v5"
)

func testKeyPEM(t *testing.T) (*rsa.PrivateKey, string) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	block := &pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)}
	return key, string(pem.EncodeToMemory(block))
}

func TestFirestoreReaderQuery(t *testing.T) {
	key, keyPEM := testKeyPEM(t)

	var gotQuery runQueryRequest
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/token":
			if err := r.ParseForm(); err != nil {
				t.Errorf("parse token form: %v", err)
			}
			assertion := r.PostForm.Get("assertion")
			parsed, err := jwt.Parse(assertion, func(*jwt.Token) (any, error) { return &key.PublicKey, nil })
			if err != nil || !parsed.Valid {
				t.Errorf("invalid assertion: %v", err)
			}
			if iss, _ := parsed.Claims.GetIssuer(); iss != "migrator@test-proj.iam.gserviceaccount.com" {
				t.Errorf("unexpected issuer %q", iss)
			}
			json.NewEncoder(w).Encode(map[string]any{"access_token": "test-token", "expires_in": 3600})
		case "/projects/test-proj/databases/(default)/documents:runQuery":
			gotAuth = r.Header.Get("Authorization")
			if err := json.NewDecoder(r.Body).Decode(&gotQuery); err != nil {
				t.Errorf("decode query: %v", err)
			}
			w.Write([]byte(`[
				{"document": {
					"name": "projects/test-proj/databases/(default)/documents/orders/ord_1",
					"fields": {
						"orderNumber": {"stringValue": "FL-1"},
						"total": {"integerValue": "35000"}
					},
					"createTime": "2026-02-01T03:00:00Z",
					"updateTime": "2026-02-01T03:05:00Z"
				}},
				{"readTime": "2026-02-01T09:00:00Z"}
			]`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	account := ServiceAccount{
		ProjectID:   "test-proj",
		ClientEmail: "migrator@test-proj.iam.gserviceaccount.com",
		PrivateKey:  keyPEM,
		TokenURI:    srv.URL + "/token",
	}
	reader := NewFirestore("test-proj", account)
	reader.baseURL = srv.URL

	docs, err := reader.Query(context.Background(), "orders", Options{
		Filters: []Filter{{Field: "status", Op: "==", Value: "completed"}},
		OrderBy: "orderedAt",
		Offset:  10,
		Limit:   50,
	})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}

	if gotAuth != "Bearer test-token" {
		t.Fatalf("missing bearer token, got %q", gotAuth)
	}
	q := gotQuery.StructuredQuery
	if len(q.From) != 1 || q.From[0].CollectionID != "orders" {
		t.Fatalf("unexpected from clause: %+v", q.From)
	}
	if q.Offset != 10 || q.Limit != 50 {
		t.Fatalf("pagination not forwarded: offset=%d limit=%d", q.Offset, q.Limit)
	}
	if q.Where == nil || q.Where.FieldFilter == nil || q.Where.FieldFilter.Op != "EQUAL" {
		t.Fatalf("filter not forwarded: %+v", q.Where)
	}
	if len(q.OrderBy) != 1 || q.OrderBy[0].Direction != "ASCENDING" {
		t.Fatalf("order not forwarded: %+v", q.OrderBy)
	}

	// The readTime-only trailer item carries no document and is dropped.
	if len(docs) != 1 {
		t.Fatalf("expected 1 document, got %d", len(docs))
	}
	d := docs[0]
	if d.ID != "ord_1" {
		t.Fatalf("document id = %q, want ord_1", d.ID)
	}
	if d.Fields["orderNumber"] != "FL-1" || d.Fields["total"] != int64(35000) {
		t.Fatalf("fields not decoded: %#v", d.Fields)
	}
	if d.CreateTime.IsZero() || d.UpdateTime.IsZero() {
		t.Fatalf("document times not decoded: %+v", d)
	}
}

func TestFirestoreReaderRejectsUnknownFilterOp(t *testing.T) {
	reader := NewFirestore("test-proj", ServiceAccount{})
	_, err := reader.Query(context.Background(), "orders", Options{
		Filters: []Filter{{Field: "status", Op: "!=", Value: "completed"}},
	})
	if err == nil {
		t.Fatalf("expected error for unsupported op")
	}
}

func TestTokenSourceCachesUntilExpiry(t *testing.T) {
	_, keyPEM := testKeyPEM(t)

	var exchanges int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		exchanges++
		json.NewEncoder(w).Encode(map[string]any{"access_token": "test-token", "expires_in": 3600})
	}))
	defer srv.Close()

	ts := newTokenSource(ServiceAccount{
		ClientEmail: "migrator@test-proj.iam.gserviceaccount.com",
		PrivateKey:  keyPEM,
		TokenURI:    srv.URL,
	}, srv.Client())

	for i := 0; i < 3; i++ {
		token, err := ts.Token(context.Background())
		if err != nil {
			t.Fatalf("Token: %v", err)
		}
		if token != "test-token" {
			t.Fatalf("unexpected token %q", token)
		}
	}
	if exchanges != 1 {
		t.Fatalf("expected a single exchange, got %d", exchanges)
	}
}

func TestLoadServiceAccount(t *testing.T) {
	_, keyPEM := testKeyPEM(t)
	path := filepath.Join(t.TempDir(), "sa.json")
	raw, _ := json.Marshal(map[string]string{
		"project_id":   "test-proj",
		"client_email": "migrator@test-proj.iam.gserviceaccount.com",
		"private_key":  keyPEM,
	})
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	account, err := LoadServiceAccount(path)
	if err != nil {
		t.Fatalf("LoadServiceAccount: %v", err)
	}
	if account.TokenURI != "https://oauth2.googleapis.com/token" {
		t.Fatalf("token_uri default missing: %q", account.TokenURI)
	}

	if _, err := LoadServiceAccount(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
