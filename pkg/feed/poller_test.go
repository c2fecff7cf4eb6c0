package feed

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Adda-Baaj/cine-khobor/internal/domain"
	"github.com/Adda-Baaj/cine-khobor/pkg/httpclient"
)

type fakeResponse struct {
	body   []byte
	status int
}

func (f fakeResponse) Body() []byte    { return f.body }
func (f fakeResponse) StatusCode() int { return f.status }

type fakeHTTPClient struct {
	resp    httpclient.Response
	err     error
	url     string
	headers map[string]string
}

func (f *fakeHTTPClient) Get(_ context.Context, url string, headers map[string]string) (httpclient.Response, error) {
	f.url = url
	f.headers = headers
	return f.resp, f.err
}

const sampleListing = `{
  "kind": "Listing",
  "data": {
    "children": [
      {"kind": "t3", "data": {"id": "abc123", "title": "Foo Movie", "created": 1700000000.0, "selftext": "Check it out https://www.imdb.com/title/tt1234567/ now"}},
      {"kind": "t3", "data": {"id": "", "title": "no id"}},
      {"kind": "t3", "data": {"id": "def456", "title": "Bar", "created": 1700000100.5, "selftext": ""}}
    ]
  }
}`

func TestPollerFetchParsesListingInOrder(t *testing.T) {
	client := &fakeHTTPClient{resp: fakeResponse{body: []byte(sampleListing), status: 200}}
	p := NewPoller("https://www.reddit.com/r/movies/new.json", "test-agent/1.0", client)

	items, err := p.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items (empty id skipped), got %d", len(items))
	}
	if items[0].ID != "abc123" || items[1].ID != "def456" {
		t.Fatalf("feed order not preserved: %+v", items)
	}
	if !items[0].CreatedAt.Equal(time.Unix(1700000000, 0)) {
		t.Fatalf("unexpected created time %v", items[0].CreatedAt)
	}
	if items[0].Body != "Check it out https://www.imdb.com/title/tt1234567/ now" {
		t.Fatalf("unexpected body %q", items[0].Body)
	}
	if client.headers["User-Agent"] != "test-agent/1.0" {
		t.Fatalf("user agent header not sent: %v", client.headers)
	}
	if client.url != "https://www.reddit.com/r/movies/new.json" {
		t.Fatalf("unexpected url %s", client.url)
	}
}

func TestPollerFetchClassifiesErrors(t *testing.T) {
	tests := []struct {
		name   string
		client *fakeHTTPClient
		want   error
	}{
		{
			name:   "network",
			client: &fakeHTTPClient{err: errors.New("dial tcp: timeout")},
			want:   domain.ErrTransport,
		},
		{
			name:   "status",
			client: &fakeHTTPClient{resp: fakeResponse{body: []byte("Too Many Requests"), status: 429}},
			want:   domain.ErrTransport,
		},
		{
			name:   "malformed",
			client: &fakeHTTPClient{resp: fakeResponse{body: []byte("<html>"), status: 200}},
			want:   domain.ErrParse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, err := NewPoller("https://feed", "ua", tt.client).Fetch(context.Background())
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if len(items) != 0 {
				t.Fatalf("expected no items on failure, got %d", len(items))
			}
			if !domain.Recoverable(err) {
				t.Fatalf("fetch failures should be recoverable: %v", err)
			}
		})
	}
}

func TestResponseSnippetTruncates(t *testing.T) {
	long := make([]byte, 600)
	for i := range long {
		long[i] = 'x'
	}
	if got := responseSnippet(long); len(got) != 515 {
		t.Fatalf("expected truncated snippet, got len %d", len(got))
	}
	if got := responseSnippet(nil); got != "<empty>" {
		t.Fatalf("expected <empty>, got %q", got)
	}
}
