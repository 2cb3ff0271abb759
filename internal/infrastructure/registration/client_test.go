package registration

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/erp/labelprint/internal/domain/printing"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var fixedNow = time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)

func newTestClient(t *testing.T, endpoint string) *Client {
	return NewClient(&Config{
		Endpoint:         endpoint,
		LocationEndpoint: endpoint + "/locations",
		APIKey:           "secret",
		Timeout:          2 * time.Second,
		Logger:           zaptest.NewLogger(t),
	}, WithClock(func() time.Time { return fixedNow }))
}

func testRequest() *printing.RegistrationRequest {
	price := decimal.RequireFromString("12.50")
	cfg := &printing.PrintJobConfig{
		StoreID:          "store-1",
		DefaultTierLabel: "1g",
		SaleContext:      &printing.SaleContext{OrderID: "order-7", StaffID: "staff-2"},
	}
	return printing.NewRegistrationRequest(cfg, []printing.PrintItem{
		{Product: printing.ItemSnapshot{ID: "prod-a", Name: "Local A", BatchNumber: "B-1"}, Quantity: 2, TierLabel: "3.5g", UnitPrice: &price},
		{Product: printing.ItemSnapshot{ID: "prod-b", Name: "Local B"}, Quantity: 1},
	})
}

func code() string {
	return "S" + uuid.New().String()
}

func successBody(codes []string) map[string]any {
	items := make([]map[string]any, len(codes))
	for i, c := range codes {
		product := map[string]any{"id": "prod-a", "name": "Remote A", "thc_percentage": 24.1, "strain_type": "Sativa"}
		if i == 2 {
			product = map[string]any{"id": "prod-b"}
		}
		items[i] = map[string]any{"sale_code": c, "product": product}
	}
	return map[string]any{
		"success": true,
		"payload": map[string]any{
			"items":       items,
			"config":      map[string]any{"store_id": "store-1", "location_name": "Downtown", "distributor_license": "LIC-1"},
			"sealed_date": "2026-10-14",
		},
		"qr_codes_registered": len(codes),
		"skipped_products":    []string{"prod-deleted"},
	}
}

func TestClient_Register_Success(t *testing.T) {
	codes := []string{code(), code(), code()}
	var captured registerRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		_ = json.NewEncoder(w).Encode(successBody(codes))
	}))
	defer server.Close()

	batch, err := newTestClient(t, server.URL).Register(context.Background(), testRequest())
	require.NoError(t, err)

	require.Len(t, batch.Labels, 3)
	for i, c := range codes {
		assert.Equal(t, c, batch.Labels[i].SaleCode.String(), "label %d keeps response order", i)
	}
	assert.Equal(t, "Remote A", batch.Labels[0].Item.Name)
	assert.Equal(t, "Sativa", batch.Labels[0].Item.Variant)
	assert.Equal(t, "24.1%", batch.Labels[0].Item.THC.String())
	assert.Equal(t, "B-1", batch.Labels[0].Item.BatchNumber, "local facts fill gaps")
	assert.Equal(t, "3.5g", batch.Labels[1].TierLabel, "tier zipped by position")
	assert.Equal(t, "Local B", batch.Labels[2].Item.Name)
	assert.Equal(t, "1g", batch.Labels[2].TierLabel)
	assert.Equal(t, 3, batch.QRCodesRegistered)
	assert.Equal(t, "Downtown", batch.Config.LocationName)
	assert.Equal(t, []printing.SkippedProduct{{ProductID: "prod-deleted"}}, batch.Skipped)
	assert.Equal(t, 2026, batch.SealedDate.Year())
	require.NotNil(t, batch.SaleContext)
	assert.Equal(t, "order-7", batch.SaleContext.OrderID)

	assert.Equal(t, "store-1", captured.StoreID)
	require.Len(t, captured.Items, 2)
	assert.Equal(t, 2, captured.Items[0].Quantity)
	assert.Equal(t, json.Number("12.5"), captured.Items[0].UnitPrice)
	assert.Equal(t, "order-7", captured.SaleContext.OrderID)
	assert.Equal(t, fixedNow.Format(time.RFC3339), captured.SaleContext.SoldAt)
}

func skippedBody(codes []string, skipped ...string) map[string]any {
	items := make([]map[string]any, len(codes))
	for i, c := range codes {
		items[i] = map[string]any{"sale_code": c, "product": map[string]any{"id": "prod-a"}}
	}
	return map[string]any{
		"success":          true,
		"payload":          map[string]any{"items": items, "config": map[string]any{"store_id": "store-1"}},
		"skipped_products": skipped,
	}
}

func TestClient_Register_SkippedRequestedProduct(t *testing.T) {
	codes := []string{code(), code()}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(skippedBody(codes, "prod-b"))
	}))
	defer server.Close()

	batch, err := newTestClient(t, server.URL).Register(context.Background(), testRequest())
	require.NoError(t, err)

	require.Len(t, batch.Labels, 2)
	for i, c := range codes {
		assert.Equal(t, c, batch.Labels[i].SaleCode.String())
		assert.Equal(t, "3.5g", batch.Labels[i].TierLabel, "units of prod-a keep their tier")
		assert.Equal(t, "B-1", batch.Labels[i].Item.BatchNumber)
	}
	assert.Equal(t, 2, batch.QRCodesRegistered)
	assert.Equal(t, []printing.SkippedProduct{{ProductID: "prod-b"}}, batch.Skipped)
}

func TestClient_Register_SkippedCountStillChecked(t *testing.T) {
	tests := []struct {
		name     string
		body     map[string]any
		wantKind printing.FailureKind
	}{
		{"mismatch after dropping skipped units", skippedBody([]string{code()}, "prod-b"), printing.FailureBackendError},
		{"skipped product not in request", skippedBody([]string{code(), code()}, "prod-z"), printing.FailureBackendError},
		{"every product skipped", skippedBody(nil, "prod-a", "prod-b"), printing.FailureNoItems},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_ = json.NewEncoder(w).Encode(tt.body)
			}))
			defer server.Close()

			batch, err := newTestClient(t, server.URL).Register(context.Background(), testRequest())
			assert.Nil(t, batch)
			assert.Equal(t, tt.wantKind, printing.FailureKindOf(err))
		})
	}
}

func TestClient_Register_FailureTaxonomy(t *testing.T) {
	tests := []struct {
		name     string
		handler  http.HandlerFunc
		wantKind printing.FailureKind
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			},
			wantKind: printing.FailureBackendError,
		},
		{
			name: "unauthorized means misconfigured",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
			},
			wantKind: printing.FailureNotConfigured,
		},
		{
			name: "success false",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, `{"success":false,"error":"store closed"}`)
			},
			wantKind: printing.FailureBackendError,
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, `{not json`)
			},
			wantKind: printing.FailureBackendError,
		},
		{
			name: "fewer codes than units",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_ = json.NewEncoder(w).Encode(successBody([]string{code()}))
			},
			wantKind: printing.FailureBackendError,
		},
		{
			name: "duplicate codes",
			handler: func(w http.ResponseWriter, r *http.Request) {
				c := code()
				_ = json.NewEncoder(w).Encode(successBody([]string{c, c, code()}))
			},
			wantKind: printing.FailureBackendError,
		},
		{
			name: "malformed code",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_ = json.NewEncoder(w).Encode(successBody([]string{code(), "X123", code()}))
			},
			wantKind: printing.FailureBackendError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			batch, err := newTestClient(t, server.URL).Register(context.Background(), testRequest())
			assert.Nil(t, batch)
			var regErr *printing.RegistrationError
			require.ErrorAs(t, err, &regErr)
			assert.Equal(t, tt.wantKind, regErr.Kind)
		})
	}
}

func TestClient_Register_BackendErrorCarriesDetail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = io.WriteString(w, `{"success":false,"error":"unknown product prod-b"}`)
	}))
	defer server.Close()

	_, err := newTestClient(t, server.URL).Register(context.Background(), testRequest())
	var regErr *printing.RegistrationError
	require.ErrorAs(t, err, &regErr)
	assert.Equal(t, http.StatusUnprocessableEntity, regErr.StatusCode)
	assert.Equal(t, "unknown product prod-b", regErr.Detail)
}

func TestClient_Register_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	endpoint := server.URL
	server.Close()

	_, err := newTestClient(t, endpoint).Register(context.Background(), testRequest())
	assert.Equal(t, printing.FailureNetworkError, printing.FailureKindOf(err))
}

func TestClient_Register_LocalFailures(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	_, err := c.Register(context.Background(), &printing.RegistrationRequest{StoreID: "s"})
	assert.Equal(t, printing.FailureNoItems, printing.FailureKindOf(err))

	_, err = newTestClient(t, "").Register(context.Background(), testRequest())
	assert.Equal(t, printing.FailureNotConfigured, printing.FailureKindOf(err))

	_, err = newTestClient(t, "ftp://example.com").Register(context.Background(), testRequest())
	assert.Equal(t, printing.FailureNotConfigured, printing.FailureKindOf(err))

	noKey := NewClient(&Config{Endpoint: server.URL})
	_, err = noKey.Register(context.Background(), testRequest())
	assert.Equal(t, printing.FailureNotConfigured, printing.FailureKindOf(err))

	bad := testRequest()
	bad.Items[0].ProductID = ""
	_, err = c.Register(context.Background(), bad)
	assert.Equal(t, printing.FailureInvalidRequest, printing.FailureKindOf(err))

	assert.Equal(t, 0, calls)
}

func TestClient_RecordLocations(t *testing.T) {
	var got locationRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/locations", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	codes := []printing.SaleCode{printing.SaleCode(code()), printing.SaleCode(code())}
	err := newTestClient(t, server.URL).RecordLocations(context.Background(), codes, "loc-1", "Downtown")
	require.NoError(t, err)
	assert.Equal(t, []string{codes[0].String(), codes[1].String()}, got.SaleCodes)
	assert.Equal(t, "loc-1", got.LocationID)

	disabled := NewClient(&Config{Endpoint: server.URL, APIKey: "k"})
	assert.NoError(t, disabled.RecordLocations(context.Background(), codes, "", ""))
}

func TestClient_RecordLocations_Rejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	err := newTestClient(t, server.URL).RecordLocations(context.Background(),
		[]printing.SaleCode{printing.SaleCode(code())}, "", "")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), fmt.Sprintf("HTTP %d", http.StatusInternalServerError))
}

func TestParseSkipped(t *testing.T) {
	assert.Nil(t, parseSkipped(nil))
	assert.Equal(t,
		[]printing.SkippedProduct{{ProductID: "a", Reason: "deleted"}, {ProductID: "b"}},
		parseSkipped(json.RawMessage(`[{"product_id":"a","reason":"deleted"},{"id":"b"}]`)))
}
