package lrclib

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestClient(handler http.HandlerFunc) (*Client, func()) {
	server := httptest.NewServer(handler)
	return NewClient(server.URL+"/api", 2*time.Second), server.Close
}

// TestSearchQuery 测试查询参数
func TestSearchQuery(t *testing.T) {
	var gotPath, gotTrack, gotArtist string
	var hasArtist bool
	client, closeFn := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotTrack = r.URL.Query().Get("track_name")
		gotArtist = r.URL.Query().Get("artist_name")
		_, hasArtist = r.URL.Query()["artist_name"]
		w.Write([]byte(`[]`))
	})
	defer closeFn()

	if _, err := client.Search(context.Background(), "Song Title", "Band"); err != nil {
		t.Fatalf("搜索失败: %v", err)
	}
	if gotPath != "/api/search" || gotTrack != "Song Title" || gotArtist != "Band" {
		t.Errorf("unexpected request: path=%q track=%q artist=%q", gotPath, gotTrack, gotArtist)
	}

	client.Search(context.Background(), "Song Title", "")
	if hasArtist {
		t.Error("artist_name must be omitted when artist is empty")
	}
}

func TestSyncedLyrics(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		want    string
		wantErr error
	}{
		{
			name:   "first candidate synced",
			status: http.StatusOK,
			body:   `[{"trackName":"Song","syncedLyrics":"[00:01.00]la la"},{"syncedLyrics":"[00:01.00]other"}]`,
			want:   "[00:01.00]la la",
		},
		{
			name:    "first candidate plain only",
			status:  http.StatusOK,
			body:    `[{"plainLyrics":"la la"},{"syncedLyrics":"[00:01.00]other"}]`,
			wantErr: ErrNoSyncedLyrics,
		},
		{
			name:    "null synced lyrics",
			status:  http.StatusOK,
			body:    `[{"syncedLyrics":null,"plainLyrics":"la"}]`,
			wantErr: ErrNoSyncedLyrics,
		},
		{
			name:    "empty array",
			status:  http.StatusOK,
			body:    `[]`,
			wantErr: ErrNoResults,
		},
		{
			name:    "empty body",
			status:  http.StatusOK,
			body:    ``,
			wantErr: ErrEmptyBody,
		},
		{
			name:   "not json",
			status: http.StatusOK,
			body:   `not json`,
		},
		{
			name:   "server error",
			status: http.StatusInternalServerError,
			body:   `[{"syncedLyrics":"[00:01.00]x"}]`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, closeFn := newTestClient(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})
			defer closeFn()

			got, err := client.SyncedLyrics(context.Background(), "Song", "Band")
			if tt.want != "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if got != tt.want {
					t.Errorf("expected %q, got %q", tt.want, got)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error, got lyrics %q", got)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

// TestTimeout 测试超时机制
func TestTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	client := NewClient(server.URL, 100*time.Millisecond)
	start := time.Now()
	if _, err := client.SyncedLyrics(context.Background(), "Song", ""); err == nil {
		t.Fatal("预期超时错误")
	}
	if elapsed := time.Since(start); elapsed > 400*time.Millisecond {
		t.Errorf("timeout not honoured, took %v", elapsed)
	}
}
