// Package importer fetches remote pages and feeds and turns them into plain-text task drafts.
package importer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/mmcdole/gofeed"
	"mvdan.cc/xurls/v2"
)

const (
	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/127.0.0.0 Safari/537.36"

	clientTimeout  = 20 * time.Second
	maxBodyBytes   = 5 << 20
	maxFeedItems   = 20
	maxTitleRunes  = 120
	feedItemJoiner = "\n\n"
)

var (
	ErrInvalidURL         = errors.New("invalid URL")
	ErrUnsupportedContent = errors.New("unsupported content")
	ErrUnreachable        = errors.New("source unreachable")
)

// Document is a fetched resource reduced to a title and plain-text content.
type Document struct {
	URL     string
	Title   string
	Content string
}

type Importer struct {
	client     *http.Client
	feedParser *gofeed.Parser
	httpsURLRe *regexp.Regexp
	log        *slog.Logger
}

func New(log *slog.Logger) (*Importer, error) {
	return NewWithClient(&http.Client{Timeout: clientTimeout}, log)
}

func NewWithClient(client *http.Client, log *slog.Logger) (*Importer, error) {
	httpsURLRe, err := xurls.StrictMatchingScheme("https://")
	if err != nil {
		return nil, fmt.Errorf("create regexp: %w", err)
	}

	return &Importer{
		client:     client,
		feedParser: gofeed.NewParser(),
		httpsURLRe: httpsURLRe,
		log:        log,
	}, nil
}

// FindURLs returns the distinct https URLs mentioned in text, in order of appearance.
func (i *Importer) FindURLs(text string) []string {
	matches := i.httpsURLRe.FindAllString(strings.TrimSpace(text), -1)

	urls := make([]string, 0, len(matches))
	seen := make(map[string]struct{}, len(matches))
	for _, m := range matches {
		m = strings.TrimSpace(m)
		if _, ok := seen[m]; ok {
			continue
		}

		seen[m] = struct{}{}
		urls = append(urls, m)
	}

	return urls
}

// Fetch downloads rawURL and extracts a document from an HTML page, a feed or plain text.
func (i *Importer) Fetch(ctx context.Context, rawURL string) (Document, error) {
	rawURL = strings.TrimSpace(rawURL)

	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return Document{}, fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	if (parsedURL.Scheme != "http" && parsedURL.Scheme != "https") || parsedURL.Host == "" {
		return Document{}, fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}

	body, contentType, err := i.download(ctx, rawURL)
	if err != nil {
		return Document{}, fmt.Errorf("%w: %w", ErrUnreachable, err)
	}

	doc, err := i.extract(rawURL, body, contentType)
	if err != nil {
		return Document{}, err
	}

	doc.Title = strings.TrimSpace(doc.Title)
	if doc.Title == "" {
		i.log.WarnContext(ctx, "Empty document title",
			"url", rawURL,
			"fallbackTitle", rawURL)

		doc.Title = rawURL
	}
	doc.Title = truncateTitle(doc.Title)

	if strings.TrimSpace(doc.Content) == "" {
		return Document{}, fmt.Errorf("%w: document at %s has no text", ErrUnsupportedContent, rawURL)
	}

	return doc, nil
}

func (i *Importer) download(ctx context.Context, rawURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", userAgent)

	resp, err := i.client.Do(req) //nolint:gosec // user-provided import URL
	if err != nil {
		return nil, "", fmt.Errorf("do request: %w", err)
	}
	defer func() {
		if err = resp.Body.Close(); err != nil {
			i.log.ErrorContext(ctx, "Failed to close response body",
				"error", err,
				"url", rawURL,
				"operation", "download")
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("do request: unexpected status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, "", fmt.Errorf("read body: %w", err)
	}

	return body, strings.ToLower(resp.Header.Get("Content-Type")), nil
}

func (i *Importer) extract(rawURL string, body []byte, contentType string) (Document, error) {
	if strings.Contains(contentType, "html") {
		return htmlDocument(rawURL, body)
	}

	if feed, err := i.feedParser.Parse(bytes.NewReader(body)); err == nil {
		return feedDocument(rawURL, feed)
	}

	if contentType == "" || strings.HasPrefix(contentType, "text/plain") || strings.Contains(contentType, "markdown") {
		if !utf8.Valid(body) {
			return Document{}, fmt.Errorf("%w: body is not valid UTF-8", ErrUnsupportedContent)
		}
		return plainDocument(rawURL, string(body)), nil
	}

	return Document{}, fmt.Errorf("%w: %s", ErrUnsupportedContent, contentType)
}

func plainDocument(rawURL string, text string) Document {
	text = strings.ReplaceAll(text, "\r\n", "\n")

	var title string
	for line := range strings.SplitSeq(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			title = strings.TrimSpace(strings.TrimLeft(line, "#"))
			break
		}
	}

	return Document{URL: rawURL, Title: title, Content: strings.TrimSpace(text)}
}

func feedDocument(rawURL string, feed *gofeed.Feed) (Document, error) {
	parts := make([]string, 0, min(len(feed.Items), maxFeedItems))

	for _, item := range feed.Items {
		if len(parts) == maxFeedItems {
			break
		}

		var b strings.Builder
		if title := strings.TrimSpace(item.Title); title != "" {
			b.WriteString(title)
		}
		if link := strings.TrimSpace(item.Link); link != "" {
			if b.Len() > 0 {
				b.WriteString("\n")
			}
			b.WriteString(link)
		}

		description := item.Description
		if description == "" {
			description = item.Content
		}
		text, err := htmlFragmentText(description)
		if err != nil {
			return Document{}, fmt.Errorf("extract item text: %w", err)
		}
		if text != "" {
			if b.Len() > 0 {
				b.WriteString("\n")
			}
			b.WriteString(text)
		}

		if b.Len() > 0 {
			parts = append(parts, b.String())
		}
	}

	return Document{
		URL:     rawURL,
		Title:   feed.Title,
		Content: strings.Join(parts, feedItemJoiner),
	}, nil
}

func truncateTitle(title string) string {
	if utf8.RuneCountInString(title) <= maxTitleRunes {
		return title
	}

	runes := []rune(title)
	return strings.TrimSpace(string(runes[:maxTitleRunes])) + "…"
}
