package geocoder

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestFetchCoordinates_OK(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Fatalf("method = %s, want GET", r.Method)
		}
		q := r.URL.Query()
		if q.Get("apikey") != "test-key" {
			t.Fatalf("apikey = %q, want test-key", q.Get("apikey"))
		}
		if q.Get("geocode") != "Москва, Тверская 1" {
			t.Fatalf("geocode = %q", q.Get("geocode"))
		}
		if q.Get("format") != "json" {
			t.Fatalf("format = %q, want json", q.Get("format"))
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"response": {"GeoObjectCollection": {"featureMember": [
				{"GeoObject": {"Point": {"pos": "37.61 55.76"}}},
				{"GeoObject": {"Point": {"pos": "30.31 59.93"}}}
			]}}
		}`))
	}))
	defer ts.Close()

	client := NewClient(ts.URL, "test-key")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	coord, err := client.FetchCoordinates(ctx, "Москва, Тверская 1")
	if err != nil {
		t.Fatalf("FetchCoordinates error: %v", err)
	}
	if coord == nil {
		t.Fatal("expected coordinates, got nil")
	}
	if coord.Latitude != 55.76 || coord.Longitude != 37.61 {
		t.Fatalf("coord = %+v, want lat 55.76 lon 37.61", coord)
	}
}

func TestFetchCoordinates_EmptyResult(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"response": {"GeoObjectCollection": {"featureMember": []}}}`))
	}))
	defer ts.Close()

	client := NewClient(ts.URL, "test-key")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	coord, err := client.FetchCoordinates(ctx, "несуществующий адрес")
	if err != nil {
		t.Fatalf("FetchCoordinates error: %v", err)
	}
	if coord != nil {
		t.Fatalf("expected nil for empty result, got %+v", coord)
	}
}

func TestFetchCoordinates_ServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer ts.Close()

	client := NewClient(ts.URL, "bad-key")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if _, err := client.FetchCoordinates(ctx, "Москва"); err == nil {
		t.Fatal("expected error for non-200 status")
	}
}

func TestFetchCoordinates_EmptyAddress(t *testing.T) {
	client := NewClient("geocode-maps.yandex.ru/1.x", "test-key")

	coord, err := client.FetchCoordinates(context.Background(), "")
	if err != nil {
		t.Fatalf("FetchCoordinates error: %v", err)
	}
	if coord != nil {
		t.Fatalf("expected nil for empty address, got %+v", coord)
	}
}

func TestParsePos_Malformed(t *testing.T) {
	for _, pos := range []string{"", "37.61", "abc def", "37.61 55.76 1"} {
		if _, err := parsePos(pos); err == nil {
			t.Fatalf("parsePos(%q): expected error", pos)
		}
	}
}
