package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(Config{
		BaseURL:         server.URL,
		Token:           "test-token",
		CompanyID:       42,
		DefaultMasterID: 7,
	})
}

func TestFetchGoods(t *testing.T) {
	var gotPath, gotAuth string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.String()
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"response": []map[string]any{
				{"good_id": 1001, "barcode": "1001", "good_name": "Scissors", "storage_amounts": []map[string]any{{"storage_id": 5, "amount": 3}}},
				{"good_id": 1002, "barcode": "", "good_name": "Clippers", "storage_amounts": []map[string]any{{"storage_id": 5, "amount": "2"}}},
			},
		})
	})

	goods, err := client.FetchGoods(context.Background(), 1, 100)
	require.NoError(t, err)
	require.Len(t, goods, 2)
	require.Equal(t, "/api/v1/companies/42/goods?page=1&limit=100", gotPath)
	require.Equal(t, "Bearer test-token", gotAuth)
	require.Equal(t, 3, goods[0].AmountFor(5))
	require.Equal(t, 2, goods[1].AmountFor(5))
	require.Equal(t, 0, goods[0].AmountFor(99))
}

func TestAmountForRejectsBadValues(t *testing.T) {
	good := Good{Amounts: []StorageAmount{
		{StorageID: 1, Amount: json.Number("-4")},
		{StorageID: 2, Amount: json.Number("abc")},
	}}
	require.Equal(t, 0, good.AmountFor(1))
	require.Equal(t, 0, good.AmountFor(2))
	require.Equal(t, 0, good.AmountFor(3))
}

func TestPostDocumentFormatsDate(t *testing.T) {
	var payload documentPayload
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		_ = json.NewEncoder(w).Encode(map[string]any{"response": map[string]any{"document_id": 55}})
	})

	at := time.Date(2026, 7, 15, 12, 0, 0, 0, time.UTC)
	doc, err := client.PostDocument(context.Background(), DocumentInput{
		TypeID:     DocumentTypeArrival,
		Comment:    "test arrival",
		StorageID:  5,
		CreateDate: at,
		Timezone:   "Europe/Berlin",
	})
	require.NoError(t, err)
	require.Equal(t, int64(55), doc.ID)
	// Berlin runs +02:00 in July.
	require.Equal(t, "2026-07-15 14:00:00", payload.CreateDate)
	require.Equal(t, "+02:00", payload.Timezone)
}

func TestPostDocumentRejectsInvalidInput(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("request must not reach the network")
	})
	_, err := client.PostDocument(context.Background(), DocumentInput{TypeID: 9, StorageID: 5, CreateDate: time.Now()})
	require.Error(t, err)
}

func TestRequestErrorCarriesTruncatedBody(t *testing.T) {
	long := strings.Repeat("x", 900)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(long))
	})

	_, err := client.FetchGoods(context.Background(), 1, 100)
	require.Error(t, err)
	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	require.Equal(t, http.StatusBadGateway, reqErr.Status)
	require.Len(t, reqErr.Body, maxBodyDiagnostic)
}

func TestPostOperationUsesDefaultMaster(t *testing.T) {
	var got OperationInput
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(map[string]any{"response": true})
	})

	err := client.PostOperation(context.Background(), 55, OperationInput{
		GoodID: 1001, Amount: 2, CostPerUnit: 10, Cost: 20, UnitType: "pcs",
	})
	require.NoError(t, err)
	require.Equal(t, int64(7), got.MasterID)
}

func TestPostOperationFailsFastWithoutMaster(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("request must not reach the network")
	}))
	defer server.Close()
	client := NewClient(Config{BaseURL: server.URL, Token: "t", CompanyID: 1})

	err := client.PostOperation(context.Background(), 55, OperationInput{
		GoodID: 1001, Amount: 2, CostPerUnit: 10, Cost: 20, UnitType: "pcs",
	})
	require.ErrorIs(t, err, ErrNoMasterID)
}

func TestTimezoneOffset(t *testing.T) {
	january := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	july := time.Date(2026, 7, 15, 12, 0, 0, 0, time.UTC)

	require.Equal(t, "+00:00", TimezoneOffset("", january))
	require.Equal(t, "+00:00", TimezoneOffset("Not/AZone", january))
	require.Equal(t, "+00:00", TimezoneOffset("UTC", january))
	require.Equal(t, "+01:00", TimezoneOffset("Europe/Berlin", january))
	require.Equal(t, "+02:00", TimezoneOffset("Europe/Berlin", july))
	require.Equal(t, "-05:00", TimezoneOffset("America/New_York", january))
	require.Equal(t, "+05:30", TimezoneOffset("Asia/Kolkata", january))
}

func TestConfigured(t *testing.T) {
	require.False(t, NewClient(Config{}).Configured())
	require.False(t, NewClient(Config{BaseURL: "http://x", Token: "t"}).Configured())
	require.True(t, NewClient(Config{BaseURL: "http://x", Token: "t", CompanyID: 1}).Configured())
}
