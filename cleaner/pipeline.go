package cleaner

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/PuerkitoBio/goquery"
)

// contentSelectors locate the article body of a documentation page, in
// order of preference.
var contentSelectors = []string{"article.doc", "main article", "main", "article"}

// chromeSelectors are removed before conversion: navigation, version
// pickers, feedback widgets and edit links carry no documentation content.
var chromeSelectors = []string{
	"nav", "header", "footer", "aside", "script", "style", "noscript",
	".toolbar", ".toc", ".nav-container", ".breadcrumbs", ".page-versions",
	".feedback-section", ".edit-this-page", ".thumbs", "#embed-top-body", "#embed-bottom-body",
}

// Page is a documentation page rendered as markdown.
type Page struct {
	Title       string
	Description string
	Markdown    string
	// Tokens is a rough size estimate for LLM consumers.
	Tokens int
}

// Cleaner converts rendered documentation HTML into markdown:
//
//	Stage 1 (select):      narrow to the article body and drop site chrome
//	Stage 2 (readability): extract main content when no body was found
//	Stage 3 (markdown):    convert clean HTML to Markdown
//
// The converter is created once and reused across all requests (goroutine-safe).
type Cleaner struct {
	mdConverter *converter.Converter
}

// NewCleaner initialises the Cleaner with a pre-configured Markdown converter.
func NewCleaner() *Cleaner {
	return &Cleaner{
		mdConverter: newMarkdownConverter(),
	}
}

// Markdown converts rawHTML served at sourceURL into a Page. The title is
// emitted as a level-one heading when the body does not already start with
// one.
func (c *Cleaner) Markdown(rawHTML, sourceURL string) (*Page, error) {
	meta := ExtractMeta(rawHTML)

	// ── 1. Narrow to the article body ───────────────────────────────
	body, found := SelectFirst(rawHTML, contentSelectors...)

	// ── 2. Readability fallback for pages without a known body ──────
	title, _, _ := strings.Cut(meta.Title, " :: ")
	if found {
		body = StripElements(body, chromeSelectors)
	} else {
		article, ok := ExtractContent(rawHTML, sourceURL)
		body = article.Content
		if ok && article.Title != "" {
			title = article.Title
		}
		if meta.Description == "" {
			meta.Description = article.Excerpt
		}
	}

	// ── 3. Markdown conversion ──────────────────────────────────────
	md, err := ToMarkdown(c.mdConverter, body, sourceURL)
	if err != nil {
		return nil, fmt.Errorf("cleaner: markdown conversion: %w", err)
	}
	md = strings.TrimSpace(md)
	if title != "" && !strings.HasPrefix(md, "# ") {
		md = "# " + title + "\n\n" + md
	}

	return &Page{
		Title:       title,
		Description: meta.Description,
		Markdown:    md + "\n",
		Tokens:      EstimateTokens(md),
	}, nil
}

// EstimateTokens approximates a token count as one token per four runes,
// rounded up.
func EstimateTokens(text string) int {
	n := utf8.RuneCountInString(text)
	return (n + 3) / 4
}

// textOf returns the trimmed visible text of an HTML fragment.
func textOf(fragment string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return fragment
	}
	return strings.TrimSpace(doc.Text())
}
