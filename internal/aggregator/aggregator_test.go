package aggregator

import (
	"testing"
	"time"

	"github.com/hitoshi/newshub/internal/model"
)

func TestValidateSourceURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"有効なhttps URL", "https://example.com/feed.xml", false},
		{"有効なhttp URL", "http://example.com/rss", false},
		{"空URL", "", true},
		{"ftpスキーム", "ftp://example.com/feed", true},
		{"fileスキーム", "file:///etc/passwd", true},
		{"localhost", "http://localhost/feed", true},
		{"ループバックIP", "http://127.0.0.1/feed", true},
		{"プライベートIP", "http://192.168.1.1/feed", true},
		{"メタデータIP", "http://169.254.169.254/latest/meta-data", true},
		{"ホストなし", "https:///feed", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSourceURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateSourceURL(%q) error = %v, wantErr = %v", tt.url, err, tt.wantErr)
			}
		})
	}
}

func TestFilterCandidates_TimeFilter(t *testing.T) {
	now := time.Now()
	recent := now.Add(-1 * time.Hour)
	old := now.Add(-72 * time.Hour)

	candidates := []model.Article{
		{ID: "recent", PublishedAt: &recent},
		{ID: "old", PublishedAt: &old},
		{ID: "undated"},
	}

	got := filterCandidates(candidates, model.NewsOptions{TimeFilter: "48h"})
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	if got[0].ID != "recent" {
		t.Errorf("got %q, want recent", got[0].ID)
	}
}

func TestFilterCandidates_UnknownTimeFilter_NoFiltering(t *testing.T) {
	old := time.Now().Add(-1000 * time.Hour)
	candidates := []model.Article{
		{ID: "a", PublishedAt: &old},
		{ID: "b"},
	}

	got := filterCandidates(candidates, model.NewsOptions{TimeFilter: "whenever"})
	if len(got) != 2 {
		t.Errorf("len = %d, want 2（未知のフィルタは素通し）", len(got))
	}
}

func TestFilterCandidates_Category(t *testing.T) {
	now := time.Now()
	candidates := []model.Article{
		{ID: "tech", PublishedAt: &now, Categories: []string{"Technology", "AI"}},
		{ID: "sports", PublishedAt: &now, Categories: []string{"Sports"}},
		{ID: "none", PublishedAt: &now},
	}

	got := filterCandidates(candidates, model.NewsOptions{Category: "technology"})
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	if got[0].ID != "tech" {
		t.Errorf("got %q, want tech", got[0].ID)
	}
}

func TestHostOf(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://hnrss.org/frontpage", "hnrss.org"},
		{"not a url at all", "not a url at all"},
	}
	for _, tt := range tests {
		if got := hostOf(tt.url); got != tt.want {
			t.Errorf("hostOf(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestNewService_Defaults(t *testing.T) {
	s := NewService(nil, time.Second, 0, 0, nil)
	if s.maxConcurrency != 10 {
		t.Errorf("maxConcurrency = %d, want default 10", s.maxConcurrency)
	}
	if s.maxBodySize != 5*1024*1024 {
		t.Errorf("maxBodySize = %d, want default 5MiB", s.maxBodySize)
	}
}
