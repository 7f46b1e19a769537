package bible

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
)

// Client fetches chapter text from a bible-api style JSON provider.
type Client struct {
	baseURL     string
	apiKey      string
	translation string
	httpClient  *http.Client
}

// ClientOptions configures the text provider client.
type ClientOptions struct {
	BaseURL     string
	APIKey      string
	Translation string
	Timeout     time.Duration
}

// NewClient builds a chapter text client.
func NewClient(opts ClientOptions) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	translation := opts.Translation
	if translation == "" {
		translation = "web"
	}
	return &Client{
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		apiKey:      opts.APIKey,
		translation: translation,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

type chapterResponse struct {
	Reference string `json:"reference"`
	Verses    []struct {
		BookName string `json:"book_name"`
		Chapter  int    `json:"chapter"`
		Verse    int    `json:"verse"`
		Text     string `json:"text"`
	} `json:"verses"`
	TranslationID string `json:"translation_id"`
}

// FetchChapter retrieves the ordered verses of one chapter. Verses are
// sorted by number regardless of response order.
func (c *Client) FetchChapter(ctx context.Context, book string, chapter int, translation string) (*Chapter, error) {
	if book == "" {
		return nil, fmt.Errorf("book is required")
	}
	if chapter <= 0 {
		return nil, fmt.Errorf("chapter must be positive, got %d", chapter)
	}
	if translation == "" {
		translation = c.translation
	}

	endpoint := fmt.Sprintf("%s/%s+%d?translation=%s",
		c.baseURL, url.PathEscape(strings.ToLower(book)), chapter, url.QueryEscape(translation))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build chapter request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch chapter %s %d: %w", book, chapter, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("fetch chapter %s %d: status %d: %s", book, chapter, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload chapterResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode chapter response: %w", err)
	}
	if len(payload.Verses) == 0 {
		return nil, fmt.Errorf("chapter %s %d has no verses", book, chapter)
	}

	ref := ChapterRef{Book: book, Chapter: chapter, Translation: translation}
	verses := make([]Verse, 0, len(payload.Verses))
	for _, v := range payload.Verses {
		verses = append(verses, Verse{
			Book:        book,
			Chapter:     chapter,
			Number:      v.Verse,
			Translation: translation,
			Text:        strings.TrimSpace(v.Text),
		})
	}
	sort.Slice(verses, func(i, j int) bool { return verses[i].Number < verses[j].Number })

	return &Chapter{Ref: ref, Verses: verses}, nil
}
