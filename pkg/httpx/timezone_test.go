package httpx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestGuessTimezone(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Last-Modified", "Sun, 01 Jan 2023 00:00:00 GMT")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client, err := New(Config{UserAgent: "test"})
	if err != nil {
		t.Fatal(err)
	}

	naiveMTime := time.Date(2023, 1, 1, 8, 0, 0, 0, time.UTC)
	offset, err := client.GuessTimezone(context.Background(), server.URL+"/file", naiveMTime)
	if err != nil {
		t.Fatal(err)
	}
	if offset != 8*time.Hour {
		t.Errorf("offset = %v, want 8h", offset)
	}
}
