package indexer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const tracksQuery = `query {
  tracks(organizationSlug: %q) {
    id
    slug
    title
    permalink
    icon
    challenges { title permalink type }
    trackTags { value }
    teaser
  }
}`

const createInviteMutation = `mutation CreateInvite($trackId: String!) {
  createTrackInvite(invite: {publicTitle: %q, title: %q, trackIDs: [$trackId], allowAnonymous: true}) {
    id
    title
  }
}`

// Track is an Instruqt track as returned by the tracks query.
type Track struct {
	ID         string `json:"id"`
	Slug       string `json:"slug"`
	Title      string `json:"title"`
	Permalink  string `json:"permalink"`
	Icon       string `json:"icon"`
	Teaser     string `json:"teaser"`
	Challenges []struct {
		Title     string `json:"title"`
		Permalink string `json:"permalink"`
		Type      string `json:"type"`
	} `json:"challenges"`
	TrackTags []struct {
		Value string `json:"value"`
	} `json:"trackTags"`
}

// Challenge is a lab step in a LabRecord.
type Challenge struct {
	Title string `json:"title"`
	Type  string `json:"type"`
}

// TrackTag is a label on a LabRecord.
type TrackTag struct {
	Value string `json:"value"`
}

// LabRecord is the search record for one hands-on lab. Its objectID is a
// public invite link.
type LabRecord struct {
	ObjectID    string      `json:"objectID"`
	Title       string      `json:"title"`
	ID          string      `json:"id"`
	Image       string      `json:"image"`
	Description string      `json:"description"`
	Slug        string      `json:"slug"`
	Challenges  []Challenge `json:"challenges"`
	TrackTags   []TrackTag  `json:"trackTags"`
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphQLError struct {
	Message string `json:"message"`
}

// graphQL posts one operation and decodes its data into out.
func (r *Runner) graphQL(ctx context.Context, query string, vars map[string]any, out any) error {
	payload, err := json.Marshal(graphQLRequest{Query: query, Variables: vars})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.instruqt.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("indexer: graphql: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+r.instruqt.APIKey)

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("indexer: graphql: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return fmt.Errorf("indexer: graphql: read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("indexer: graphql: status %d", resp.StatusCode)
	}

	var envelope struct {
		Data   json.RawMessage `json:"data"`
		Errors []graphQLError  `json:"errors"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("indexer: graphql: decode: %w", err)
	}
	if len(envelope.Errors) > 0 {
		msgs := make([]string, len(envelope.Errors))
		for i, e := range envelope.Errors {
			msgs[i] = e.Message
		}
		return fmt.Errorf("indexer: graphql: %s", strings.Join(msgs, "; "))
	}
	return json.Unmarshal(envelope.Data, out)
}

// FetchTracks lists the organization's tracks.
func (r *Runner) FetchTracks(ctx context.Context) ([]Track, error) {
	var data struct {
		Tracks []Track `json:"tracks"`
	}
	if err := r.graphQL(ctx, fmt.Sprintf(tracksQuery, r.instruqt.Organization), nil, &data); err != nil {
		return nil, err
	}
	return data.Tracks, nil
}

// CreateInvite creates an anonymous invite for a track and returns its ID.
func (r *Runner) CreateInvite(ctx context.Context, trackID string) (string, error) {
	var data struct {
		CreateTrackInvite struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		} `json:"createTrackInvite"`
	}
	mutation := fmt.Sprintf(createInviteMutation, r.instruqt.InviteTitle, r.instruqt.InviteTitle)
	if err := r.graphQL(ctx, mutation, map[string]any{"trackId": trackID}, &data); err != nil {
		return "", err
	}
	if data.CreateTrackInvite.ID == "" {
		return "", fmt.Errorf("indexer: invite for track %s has no id", trackID)
	}
	return data.CreateTrackInvite.ID, nil
}

// LabRecordFor formats a track with its invite ID as a search record.
func LabRecordFor(t Track, inviteBase, inviteID string) LabRecord {
	rec := LabRecord{
		ObjectID:    inviteBase + inviteID,
		Title:       t.Title,
		ID:          t.ID,
		Image:       t.Icon,
		Description: t.Teaser,
		Slug:        t.Slug,
		Challenges:  make([]Challenge, len(t.Challenges)),
		TrackTags:   make([]TrackTag, len(t.TrackTags)),
	}
	for i, c := range t.Challenges {
		rec.Challenges[i] = Challenge{Title: c.Title, Type: c.Type}
	}
	for i, tag := range t.TrackTags {
		rec.TrackTags[i] = TrackTag{Value: tag.Value}
	}
	return rec
}

// IndexLabs creates an invite per track and prints the resulting records as
// JSON. With upload set, the records are also saved to the index.
func (r *Runner) IndexLabs(ctx context.Context, upload bool) (int, error) {
	if r.instruqt.APIKey == "" {
		return 0, fmt.Errorf("indexer: missing env var: INSTRUQT_API_KEY")
	}
	tracks, err := r.FetchTracks(ctx)
	if err != nil {
		return 0, err
	}

	records, err := collect(ctx, r, tracks, func(ctx context.Context, t Track) ([]LabRecord, error) {
		inviteID, err := r.CreateInvite(ctx, t.ID)
		if err != nil {
			return nil, err
		}
		return []LabRecord{LabRecordFor(t, r.instruqt.InviteBase, inviteID)}, nil
	})
	if err != nil {
		return 0, err
	}

	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return 0, fmt.Errorf("indexer: print records: %w", err)
	}
	if !upload {
		return len(records), nil
	}
	return r.save(ctx, "labs", toObjects(records))
}
