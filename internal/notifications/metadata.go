package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// UserMeta is the subset of user metadata needed to render messages.
type UserMeta struct {
	ID     int64  `json:"user_id"`
	Handle string `json:"handle"`
	Name   string `json:"name"`
}

// TrackMeta is the subset of track metadata needed to render messages.
type TrackMeta struct {
	ID      int64  `json:"track_id"`
	Title   string `json:"title"`
	OwnerID int64  `json:"owner_id"`
}

// CollectionMeta is the subset of album/playlist metadata needed to render
// messages.
type CollectionMeta struct {
	ID      int64  `json:"playlist_id"`
	Name    string `json:"playlist_name"`
	OwnerID int64  `json:"playlist_owner_id"`
	IsAlbum bool   `json:"is_album"`
}

// Supporter is one entry of a user's ranked supporter list.
type Supporter struct {
	SenderID int64 `json:"sender_user_id"`
	Rank     int64 `json:"rank"`
	Amount   int64 `json:"amount"`
}

// MetadataClient fetches entity metadata from the content API. Lookups are
// batched; ids missing from the response are simply absent from the returned
// map, and callers drop the affected notifications rather than fail the batch.
type MetadataClient interface {
	GetUsers(ctx context.Context, ids []int64) (map[int64]UserMeta, error)
	GetTracks(ctx context.Context, ids []int64) (map[int64]TrackMeta, error)
	GetCollections(ctx context.Context, ids []int64) (map[int64]CollectionMeta, error)
	GetTopSupporters(ctx context.Context, userID int64, limit int) ([]Supporter, error)
}

// HTTPMetadataClient talks to the content API over HTTP.
type HTTPMetadataClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPMetadataClient creates a metadata client for the given content API
// base URL.
func NewHTTPMetadataClient(baseURL string) *HTTPMetadataClient {
	return &HTTPMetadataClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *HTTPMetadataClient) getJSON(ctx context.Context, path string, query url.Values, out interface{}) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("metadata request %s: unexpected status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func idQuery(ids []int64) url.Values {
	q := url.Values{}
	for _, id := range ids {
		q.Add("id", strconv.FormatInt(id, 10))
	}
	return q
}

func (c *HTTPMetadataClient) GetUsers(ctx context.Context, ids []int64) (map[int64]UserMeta, error) {
	if len(ids) == 0 {
		return map[int64]UserMeta{}, nil
	}
	var body struct {
		Data []UserMeta `json:"data"`
	}
	if err := c.getJSON(ctx, "/users", idQuery(ids), &body); err != nil {
		return nil, err
	}
	result := make(map[int64]UserMeta, len(body.Data))
	for _, u := range body.Data {
		result[u.ID] = u
	}
	return result, nil
}

func (c *HTTPMetadataClient) GetTracks(ctx context.Context, ids []int64) (map[int64]TrackMeta, error) {
	if len(ids) == 0 {
		return map[int64]TrackMeta{}, nil
	}
	var body struct {
		Data []TrackMeta `json:"data"`
	}
	if err := c.getJSON(ctx, "/tracks", idQuery(ids), &body); err != nil {
		return nil, err
	}
	result := make(map[int64]TrackMeta, len(body.Data))
	for _, t := range body.Data {
		result[t.ID] = t
	}
	return result, nil
}

func (c *HTTPMetadataClient) GetCollections(ctx context.Context, ids []int64) (map[int64]CollectionMeta, error) {
	if len(ids) == 0 {
		return map[int64]CollectionMeta{}, nil
	}
	var body struct {
		Data []CollectionMeta `json:"data"`
	}
	if err := c.getJSON(ctx, "/playlists", idQuery(ids), &body); err != nil {
		return nil, err
	}
	result := make(map[int64]CollectionMeta, len(body.Data))
	for _, col := range body.Data {
		result[col.ID] = col
	}
	return result, nil
}

func (c *HTTPMetadataClient) GetTopSupporters(ctx context.Context, userID int64, limit int) ([]Supporter, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	var body struct {
		Data []Supporter `json:"data"`
	}
	path := fmt.Sprintf("/users/%d/supporters", userID)
	if err := c.getJSON(ctx, path, q, &body); err != nil {
		return nil, err
	}
	return body.Data, nil
}
