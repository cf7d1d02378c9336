package airtable

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New("test-token", "appTestBase").WithBaseURL(srv.URL)
}

func TestListAll_Pagination(t *testing.T) {
	var calls int
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "/appTestBase/Timeslots_API", r.URL.Path)

		switch r.URL.Query().Get("offset") {
		case "":
			_ = json.NewEncoder(w).Encode(listResponse{
				Records: []Record{{ID: "rec1"}, {ID: "rec2"}},
				Offset:  "page2",
			})
		case "page2":
			_ = json.NewEncoder(w).Encode(listResponse{
				Records: []Record{{ID: "rec3"}},
			})
		default:
			t.Errorf("unexpected offset %q", r.URL.Query().Get("offset"))
		}
	})

	records, err := client.ListAll(context.Background(), "Timeslots_API", ListParams{})
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, 2, calls)
	assert.Equal(t, "rec3", records[2].ID)
}

func TestFindOne(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "({idempotency_key}='abc')", r.URL.Query().Get("filterByFormula"))
		assert.Equal(t, "1", r.URL.Query().Get("pageSize"))
		_ = json.NewEncoder(w).Encode(listResponse{
			Records: []Record{{ID: "recX", Fields: map[string]any{"booking_id": "b-1"}}},
		})
	})

	rec, err := client.FindOne(context.Background(), "Bookings_API", "({idempotency_key}='abc')")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "recX", rec.ID)
	assert.Equal(t, "b-1", rec.Fields["booking_id"])
}

func TestFindOne_NoMatch(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(listResponse{})
	})

	rec, err := client.FindOne(context.Background(), "Bookings_API", "({idempotency_key}='missing')")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestCreateUpdateDelete(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost:
			var body struct {
				Fields map[string]any `json:"fields"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "confirmed", body.Fields["status"])
			_ = json.NewEncoder(w).Encode(Record{ID: "recNew", Fields: body.Fields})
		case r.Method == http.MethodPatch:
			assert.Equal(t, "/appTestBase/Timeslots_API/recSlot", r.URL.Path)
			_ = json.NewEncoder(w).Encode(Record{ID: "recSlot"})
		case r.Method == http.MethodDelete:
			assert.Equal(t, "/appTestBase/Bookings_API/recNew", r.URL.Path)
			_ = json.NewEncoder(w).Encode(map[string]any{"deleted": true, "id": "recNew"})
		default:
			t.Errorf("unexpected method %s", r.Method)
		}
	})

	ctx := context.Background()

	rec, err := client.Create(ctx, "Bookings_API", map[string]any{"status": "confirmed"})
	require.NoError(t, err)
	assert.Equal(t, "recNew", rec.ID)

	_, err = client.Update(ctx, "Timeslots_API", "recSlot", map[string]any{"capacity_used": 10})
	require.NoError(t, err)

	require.NoError(t, client.Delete(ctx, "Bookings_API", "recNew"))
}

func TestDo_StatusError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error":{"type":"INVALID_FILTER_BY_FORMULA"}}`))
	})

	_, _, err := client.List(context.Background(), "Timeslots_API", ListParams{})
	require.Error(t, err)

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusUnprocessableEntity, se.StatusCode)
	assert.Contains(t, se.Body, "INVALID_FILTER_BY_FORMULA")
}

func TestListAll_RedisCache(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	var calls int
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls++
		_ = json.NewEncoder(w).Encode(listResponse{Records: []Record{{ID: "rec1"}}})
	})
	client.UseRedisCache(rdb, time.Minute)

	ctx := context.Background()

	first, err := client.ListAll(ctx, "Timeslots_API", ListParams{View: "v_timeslots_bistro"})
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := client.ListAll(ctx, "Timeslots_API", ListParams{View: "v_timeslots_bistro"})
	require.NoError(t, err)
	require.Len(t, second, 1)

	assert.Equal(t, 1, calls, "second read should be served from cache")
}
