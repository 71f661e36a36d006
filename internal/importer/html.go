package importer

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	ignoredSelector = "script, style, noscript, template, nav, header, footer, aside, form"
	blockSelector   = "h1, h2, h3, h4, h5, h6, p, li, pre, blockquote, td, dt, dd"

	// Marks <br> so explicit breaks survive whitespace folding of the source markup.
	lineBreak = "\u2028"
)

func htmlDocument(rawURL string, body []byte) (Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return Document{}, fmt.Errorf("create document from reader: %w", err)
	}

	var title string
	if content, ok := doc.Find("meta[property='og:title']").Attr("content"); ok {
		title = strings.TrimSpace(content)
	}
	if title == "" {
		title = strings.TrimSpace(doc.Find("title").First().Text())
	}

	root := doc.Find("article").First()
	if root.Length() == 0 {
		root = doc.Find("main").First()
	}
	if root.Length() == 0 {
		root = doc.Find("body").First()
	}

	return Document{URL: rawURL, Title: title, Content: selectionText(root)}, nil
}

func htmlFragmentText(fragment string) (string, error) {
	if strings.TrimSpace(fragment) == "" {
		return "", nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return "", fmt.Errorf("create document from reader: %w", err)
	}

	return selectionText(doc.Find("body")), nil
}

// selectionText renders block elements as separate paragraphs. Blocks nested in other blocks
// are rendered once, by the innermost element.
func selectionText(sel *goquery.Selection) string {
	sel.Find(ignoredSelector).Remove()
	sel.Find("br").Each(func(_ int, br *goquery.Selection) {
		br.ReplaceWithHtml(lineBreak)
	})

	var paragraphs []string
	sel.Find(blockSelector).Each(func(_ int, s *goquery.Selection) {
		if s.Find(blockSelector).Length() > 0 {
			return
		}
		if text := normalizeSpace(s.Text()); text != "" {
			paragraphs = append(paragraphs, text)
		}
	})

	if len(paragraphs) == 0 {
		return normalizeSpace(sel.Text())
	}

	return strings.Join(paragraphs, "\n\n")
}

func normalizeSpace(text string) string {
	var lines []string
	for line := range strings.SplitSeq(text, lineBreak) {
		if fields := strings.Fields(line); len(fields) > 0 {
			lines = append(lines, strings.Join(fields, " "))
		}
	}

	return strings.Join(lines, "\n")
}
