package tools

import (
	"context"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
)

const (
	defaultSearchEndpoint = "https://html.duckduckgo.com/html/"
	searchRegion          = "us-en"
	defaultWebTimeout     = 15 * time.Second
	defaultFetchMaxBytes  = 256 * 1024
	maxFetchBytes         = 1024 * 1024
	maxSearchResults      = 20
)

var (
	htmlScriptRe  = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	htmlStyleRe   = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	htmlTagRe     = regexp.MustCompile(`(?s)<[^>]+>`)
	htmlSpaceRe   = regexp.MustCompile(`\s+`)
	resultLinkRe  = regexp.MustCompile(`(?is)<a[^>]*class="[^"]*result__a[^"]*"[^>]*href="([^"]+)"[^>]*>(.*?)</a>`)
	resultSnipRe  = regexp.MustCompile(`(?is)<a[^>]*class="[^"]*result__snippet[^"]*"[^>]*>(.*?)</a>`)
	resultSnipRe2 = regexp.MustCompile(`(?is)<td[^>]*class="[^"]*result-snippet[^"]*"[^>]*>(.*?)</td>`)
)

// WebSearchInput parameters for web_search tool
type WebSearchInput struct {
	Query      string `json:"query" jsonschema:"required,description=The search query"`
	MaxResults int    `json:"max_results" jsonschema:"description=Maximum number of results to return (default 5)"`
}

// WebSearchResult one search hit
type WebSearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// WebSearchOutput result of web_search tool
type WebSearchOutput struct {
	Query   string            `json:"query"`
	Results []WebSearchResult `json:"results"`
}

// webSearchToolImpl queries DuckDuckGo's HTML endpoint. It needs no API key;
// results come from scraping the result list out of the returned page.
type webSearchToolImpl struct {
	endpoint   string
	maxResults int
	client     *http.Client
}

func (w *webSearchToolImpl) execute(ctx context.Context, input *WebSearchInput) (*WebSearchOutput, error) {
	query := strings.TrimSpace(input.Query)
	if query == "" {
		return nil, fmt.Errorf("query is required")
	}

	limit := input.MaxResults
	if limit <= 0 {
		limit = w.maxResults
	}
	if limit <= 0 {
		limit = 5
	}
	if limit > maxSearchResults {
		limit = maxSearchResults
	}

	form := url.Values{}
	form.Set("q", query)
	form.Set("kl", searchRegion)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "text/html")
	req.Header.Set("User-Agent", "seeker-web-search/1.0")

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("search failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	page, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes))
	if err != nil {
		return nil, err
	}

	base, _ := url.Parse(w.endpoint)
	results := parseSearchResults(string(page), base, limit)
	if len(results) == 0 {
		return nil, fmt.Errorf("no search results found")
	}

	return &WebSearchOutput{Query: query, Results: results}, nil
}

// parseSearchResults pairs result links with their snippets by position.
func parseSearchResults(page string, base *url.URL, limit int) []WebSearchResult {
	links := resultLinkRe.FindAllStringSubmatch(page, limit)
	snippets := resultSnipRe.FindAllStringSubmatch(page, limit)
	if len(snippets) == 0 {
		snippets = resultSnipRe2.FindAllStringSubmatch(page, limit)
	}

	results := make([]WebSearchResult, 0, len(links))
	for i, m := range links {
		if len(m) < 3 {
			continue
		}
		rawURL := strings.TrimSpace(html.UnescapeString(m[1]))
		title := strings.TrimSpace(htmlToText(m[2]))
		if rawURL == "" || title == "" {
			continue
		}
		snippet := ""
		if i < len(snippets) && len(snippets[i]) >= 2 {
			snippet = strings.TrimSpace(htmlToText(snippets[i][1]))
		}
		results = append(results, WebSearchResult{
			Title:   title,
			URL:     resolveResultURL(rawURL, base),
			Snippet: snippet,
		})
	}
	return results
}

// resolveResultURL unwraps DuckDuckGo's /l/?uddg= redirect links.
func resolveResultURL(rawURL string, base *url.URL) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	if strings.HasPrefix(parsed.Path, "/l/") {
		if decoded, err := url.QueryUnescape(parsed.Query().Get("uddg")); err == nil && strings.TrimSpace(decoded) != "" {
			return decoded
		}
	}
	if parsed.IsAbs() {
		return parsed.String()
	}
	if base != nil {
		return base.ResolveReference(parsed).String()
	}
	return rawURL
}

// NewWebSearchTool creates the web_search tool
func NewWebSearchTool(maxResults int) (tool.InvokableTool, error) {
	if maxResults <= 0 {
		maxResults = 5
	}
	impl := &webSearchToolImpl{
		endpoint:   defaultSearchEndpoint,
		maxResults: maxResults,
		client:     &http.Client{Timeout: defaultWebTimeout},
	}
	return utils.InferTool("web_search", "Perform a web search and return results", impl.execute)
}

// WebFetchInput parameters for web_fetch tool
type WebFetchInput struct {
	URL      string `json:"url" jsonschema:"required,description=URL to fetch content from"`
	MaxBytes int    `json:"max_bytes" jsonschema:"description=Optional maximum response bytes to keep"`
}

// WebFetchOutput result of web_fetch tool
type WebFetchOutput struct {
	URL         string `json:"url"`
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Content     string `json:"content"`
	Truncated   bool   `json:"truncated"`
}

type webFetchToolImpl struct {
	client   *http.Client
	maxBytes int
}

func (w *webFetchToolImpl) execute(ctx context.Context, input *WebFetchInput) (*WebFetchOutput, error) {
	rawURL := strings.TrimSpace(input.URL)
	if rawURL == "" {
		return nil, fmt.Errorf("url is required")
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("unsupported url scheme: %s", parsed.Scheme)
	}

	maxBytes := input.MaxBytes
	if maxBytes <= 0 {
		maxBytes = w.maxBytes
	}
	if maxBytes <= 0 {
		maxBytes = defaultFetchMaxBytes
	}
	if maxBytes > maxFetchBytes {
		maxBytes = maxFetchBytes
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "seeker-web-fetch/1.0")

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, int64(maxBytes+1)))
	if err != nil {
		return nil, err
	}
	truncated := len(body) > maxBytes
	if truncated {
		body = body[:maxBytes]
	}

	// HTML pages get stripped down to readable text; everything else is
	// passed through as-is.
	content := string(body)
	if strings.Contains(strings.ToLower(resp.Header.Get("Content-Type")), "text/html") {
		content = htmlToText(content)
	}

	out := &WebFetchOutput{
		URL:         rawURL,
		Status:      resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Content:     strings.TrimSpace(content),
		Truncated:   truncated,
	}
	if resp.StatusCode >= 400 {
		return out, fmt.Errorf("error fetching %s: status %d", rawURL, resp.StatusCode)
	}
	return out, nil
}

// NewWebFetchTool creates the web_fetch tool
func NewWebFetchTool() (tool.InvokableTool, error) {
	impl := &webFetchToolImpl{
		client:   &http.Client{Timeout: defaultWebTimeout},
		maxBytes: defaultFetchMaxBytes,
	}
	return utils.InferTool("web_fetch", "Fetch content from a URL", impl.execute)
}

func htmlToText(input string) string {
	s := htmlScriptRe.ReplaceAllString(input, " ")
	s = htmlStyleRe.ReplaceAllString(s, " ")
	s = htmlTagRe.ReplaceAllString(s, " ")
	s = html.UnescapeString(s)
	s = htmlSpaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
