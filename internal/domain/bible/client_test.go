package bible

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestFetchChapterOrdersVerses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("translation") != "web" {
			t.Errorf("missing translation query, got %q", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"reference": "John 3",
			"translation_id": "web",
			"verses": [
				{"book_name": "John", "chapter": 3, "verse": 2, "text": "second "},
				{"book_name": "John", "chapter": 3, "verse": 1, "text": " first"},
				{"book_name": "John", "chapter": 3, "verse": 3, "text": "third"}
			]
		}`))
	}))
	defer srv.Close()

	client := NewClient(ClientOptions{BaseURL: srv.URL})
	chapter, err := client.FetchChapter(context.Background(), "John", 3, "")
	if err != nil {
		t.Fatalf("FetchChapter returned error: %v", err)
	}

	if len(chapter.Verses) != 3 {
		t.Fatalf("expected 3 verses, got %d", len(chapter.Verses))
	}
	for i, v := range chapter.Verses {
		if v.Number != i+1 {
			t.Fatalf("verse %d out of order: %+v", i, v)
		}
	}
	if chapter.Verses[0].Text != "first" {
		t.Fatalf("expected trimmed text, got %q", chapter.Verses[0].Text)
	}
	if chapter.Ref.Translation != "web" {
		t.Fatalf("expected default translation, got %q", chapter.Ref.Translation)
	}
}

func TestFetchChapterSurfacesHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewClient(ClientOptions{BaseURL: srv.URL})
	if _, err := client.FetchChapter(context.Background(), "Nowhere", 1, "web"); err == nil {
		t.Fatalf("expected error for 404 response")
	}
}

func TestFetchChapterValidatesInput(t *testing.T) {
	client := NewClient(ClientOptions{BaseURL: "http://localhost:0"})
	if _, err := client.FetchChapter(context.Background(), "", 1, "web"); err == nil {
		t.Fatalf("expected error for empty book")
	}
	if _, err := client.FetchChapter(context.Background(), "John", 0, "web"); err == nil {
		t.Fatalf("expected error for zero chapter")
	}
}

func TestGenreOf(t *testing.T) {
	cases := map[string]Genre{
		"John":       GenreGospel,
		"PSALMS":     GenrePoetry,
		"Revelation": GenreApocalyptic,
		"romans":     GenreEpistle,
		"Unknowneth": GenreHistory,
	}
	for book, want := range cases {
		if got := GenreOf(book); got != want {
			t.Errorf("GenreOf(%q) = %q, want %q", book, got, want)
		}
	}
}

func TestChapterKeyIsStable(t *testing.T) {
	ref := ChapterRef{Book: "John", Chapter: 3, Translation: "web"}
	if ref.Key("andrew") != ref.Key("andrew") {
		t.Fatalf("key must be deterministic")
	}
	if ref.Key("andrew") == ref.Key("aria") {
		t.Fatalf("key must vary by voice")
	}
}
