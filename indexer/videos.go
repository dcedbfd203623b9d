package indexer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/redpanda-data/docs-edge/render"
)

// maxVideoPages bounds pagination through the channel's uploads.
const maxVideoPages = 10

// VideoRecord is the search record for one video.
type VideoRecord struct {
	ObjectID    string   `json:"objectID"`
	Title       string   `json:"title"`
	Intro       string   `json:"intro"`
	PublishedAt string   `json:"publishedAt"`
	Image       string   `json:"image,omitempty"`
	Type        string   `json:"type"`
	Tags        []string `json:"_tags"`
}

// searchResponse is the subset of a YouTube Data API search response used
// here.
type searchResponse struct {
	NextPageToken string `json:"nextPageToken"`
	Items         []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
		Snippet struct {
			Title       string `json:"title"`
			Description string `json:"description"`
			PublishedAt string `json:"publishedAt"`
			Thumbnails  struct {
				High struct {
					URL string `json:"url"`
				} `json:"high"`
			} `json:"thumbnails"`
		} `json:"snippet"`
	} `json:"items"`
}

// FetchVideos lists the channel's videos, newest first. Playlists and
// channels in the results are ignored.
func (r *Runner) FetchVideos(ctx context.Context) ([]VideoRecord, error) {
	if r.youtube.APIKey == "" {
		return nil, fmt.Errorf("indexer: missing env var: YOUTUBE_API_KEY")
	}

	var records []VideoRecord
	pageToken := ""
	for range maxVideoPages {
		q := url.Values{
			"key":        {r.youtube.APIKey},
			"channelId":  {r.youtube.ChannelID},
			"part":       {"snippet,id"},
			"order":      {"date"},
			"maxResults": {"100"},
		}
		if pageToken != "" {
			q.Set("pageToken", pageToken)
		}
		endpoint := strings.TrimSuffix(r.youtube.APIBase, "/") + "/search?" + q.Encode()

		body, resp, err := render.Get(ctx, r.client, endpoint, "application/json")
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("indexer: youtube search: status %d", resp.StatusCode)
		}
		var page searchResponse
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("indexer: youtube search: %w", err)
		}

		for _, item := range page.Items {
			if item.ID.VideoID == "" {
				continue
			}
			records = append(records, VideoRecord{
				ObjectID:    "https://www.youtube.com/watch?v=" + item.ID.VideoID,
				Title:       item.Snippet.Title,
				Intro:       item.Snippet.Description,
				PublishedAt: item.Snippet.PublishedAt,
				Image:       item.Snippet.Thumbnails.High.URL,
				Type:        "Video",
				Tags:        []string{"videos"},
			})
		}

		if page.NextPageToken == "" {
			break
		}
		pageToken = page.NextPageToken
	}
	return records, nil
}

// IndexVideos saves every channel video.
func (r *Runner) IndexVideos(ctx context.Context) (int, error) {
	records, err := r.FetchVideos(ctx)
	if err != nil {
		return 0, err
	}
	return r.save(ctx, "videos", toObjects(records))
}
