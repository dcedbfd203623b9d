package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"reflect"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// blogTag marks blog records in the index.
const blogTag = "blogs"

// Blog page selectors. Class names carry a build hash suffix, so they are
// matched by prefix or substring.
const (
	blogCategorySelector    = `[class^="styles_BlogPostTemplate__headerCategory"]`
	blogTitleSelector       = `[class*="styles_BlogPostTemplate__headerTitle"]`
	blogDescriptionSelector = `[class*="styles_BlogPostTemplate__headerDescription"]`
	blogAuthorSelector      = `[class*="styles_BlogPostTemplate__headerAuthor"]`
	blogDateSelector        = `[class*="styles_BlogPostTemplate__headerAuthorsAndDate"] span:last-child`
	blogImageSelector       = `[class*="styles_BlogPostTemplate__headerImageWrapper"] img`
)

// Heading is a section heading inside a blog post.
type Heading struct {
	T string `json:"t"`
	H string `json:"h"`
}

// BlogRecord is the search record for one blog post.
type BlogRecord struct {
	ObjectID string    `json:"objectID"`
	Title    string    `json:"title"`
	Titles   []Heading `json:"titles"`
	Intro    string    `json:"intro,omitempty"`
	Category string    `json:"category,omitempty"`
	Image    string    `json:"image,omitempty"`
	Date     string    `json:"date,omitempty"`
	Author   string    `json:"author,omitempty"`
	Type     string    `json:"type"`
	Tags     []string  `json:"_tags"`
}

// BlogSummary reports what a blog run changed.
type BlogSummary struct {
	Pages     int
	Added     int
	Updated   int
	Unchanged int
}

// IsBlogURL reports whether a sitemap URL is a blog post.
func IsBlogURL(u string) bool {
	return strings.Contains(u, "/blog/")
}

// ExtractBlog builds the record for a rendered blog post. ok is false when
// the page has no post title.
func ExtractBlog(rawHTML, pageURL, baseURL string) (rec *BlogRecord, ok bool, err error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return nil, false, fmt.Errorf("indexer: parse %q: %w", pageURL, err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil, false, fmt.Errorf("indexer: parse html: %w", err)
	}

	title := firstText(doc, blogTitleSelector)
	if title == "" {
		return nil, false, nil
	}

	titles := []Heading{}
	doc.Find("h2, h3").Each(func(_ int, s *goquery.Selection) {
		id, _ := s.Attr("id")
		titles = append(titles, Heading{T: strings.TrimSpace(s.Text()), H: id})
	})

	var image string
	if src, found := doc.Find(blogImageSelector).First().Attr("src"); found {
		if ref, err := u.Parse(src); err == nil {
			image = ref.String()
		}
	}

	return &BlogRecord{
		ObjectID: strings.TrimSuffix(baseURL, "/") + u.Path,
		Title:    title,
		Titles:   titles,
		Intro:    firstText(doc, blogDescriptionSelector),
		Category: firstText(doc, blogCategorySelector),
		Image:    image,
		Date:     firstText(doc, blogDateSelector),
		Author:   firstText(doc, blogAuthorSelector),
		Type:     "Blog",
		Tags:     []string{blogTag},
	}, true, nil
}

func firstText(doc *goquery.Document, selector string) string {
	return strings.TrimSpace(doc.Find(selector).First().Text())
}

// Diff compares fresh records with the ones already indexed. New records
// are added, changed records are updated and identical ones are left alone.
func Diff(records []Object, existing map[string]Object) (ops []Operation, unchanged int) {
	for _, rec := range records {
		old, found := existing[rec.ID()]
		switch {
		case !found:
			ops = append(ops, Operation{Action: ActionAdd, Object: rec})
		case !reflect.DeepEqual(old, rec):
			ops = append(ops, Operation{Action: ActionUpdate, Object: rec})
		default:
			unchanged++
		}
	}
	return ops, unchanged
}

// IndexBlogs renders every blog post listed in the sitemap and writes only
// new or changed records, in a single batch.
func (r *Runner) IndexBlogs(ctx context.Context) (BlogSummary, error) {
	var summary BlogSummary

	all, err := FetchSitemap(ctx, r.client, r.cfg.SitemapURL)
	if err != nil {
		return summary, err
	}
	var pages []string
	for _, u := range all {
		if IsBlogURL(u) {
			pages = append(pages, u)
		}
	}
	summary.Pages = len(pages)
	slog.Info("indexer: blog pages found", "count", len(pages))

	records, err := collect(ctx, r, pages, func(ctx context.Context, pageURL string) ([]BlogRecord, error) {
		res, err := r.renderPage(ctx, pageURL, blogTitleSelector)
		if err != nil {
			return nil, err
		}
		rec, ok, err := ExtractBlog(res.HTML, pageURL, r.cfg.BlogBaseURL)
		if err != nil {
			return nil, err
		}
		if !ok {
			slog.Warn("indexer: no title, skipping", "url", pageURL)
			return nil, nil
		}
		return []BlogRecord{*rec}, nil
	})
	if err != nil {
		return summary, err
	}

	// A failed browse only costs redundant updates.
	existing, err := r.index.Browse(ctx, blogTag)
	if err != nil {
		slog.Error("indexer: browse existing blogs failed", "error", err)
	}

	ops, unchanged := Diff(toObjects(records), existing)
	summary.Unchanged = unchanged
	for _, op := range ops {
		if op.Action == ActionAdd {
			summary.Added++
		} else {
			summary.Updated++
		}
	}

	if len(ops) > 0 {
		if err := r.index.Batch(ctx, ops); err != nil {
			return summary, err
		}
	}
	r.metrics.RecordIndexed(blogTag, "add", summary.Added)
	r.metrics.RecordIndexed(blogTag, "update", summary.Updated)
	r.metrics.RecordIndexed(blogTag, "skip", summary.Unchanged)
	slog.Info("indexer: blogs indexed",
		"added", summary.Added, "updated", summary.Updated, "unchanged", summary.Unchanged)
	return summary, nil
}
