// Package hifi implements a backend over the community hifi API mirrors.
// Mirrors come and go, so every request walks the configured host list and
// settles for the first one that answers with a 200.
package hifi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"trackmux/src/client"
	"trackmux/src/lib/bytestream"
	"trackmux/src/lib/cerr"
	"trackmux/src/lib/format"
	"trackmux/src/music/entity"
)

var _ client.Module = &Hifi{}

type Config struct {
	// Hosts are base URLs of API mirrors, tried in order.
	Hosts []string
}

type Hifi struct {
	httpClient *http.Client
	config     Config
}

func New(config Config) *Hifi {
	return &Hifi{
		httpClient: &http.Client{},
		config:     config,
	}
}

func (h *Hifi) Name() string {
	return "hifi"
}

func (h *Hifi) URLSupported(trackURL string) bool {
	parsed, err := url.Parse(trackURL)
	if err != nil {
		return false
	}

	return strings.HasSuffix(parsed.Host, "tidal.com")
}

func (h *Hifi) SupportedFormats() []format.AudioFormat {
	return []format.AudioFormat{format.Flac()}
}

// trySend walks the mirror list until one host answers with a 200. The
// response body is the caller's to close.
func (h *Hifi) trySend(path string, query url.Values) (*http.Response, error) {
	for _, host := range h.config.Hosts {
		base, err := url.Parse(host)
		if err != nil {
			return nil, cerr.Field("host", host).Wrap(err).Error("Failed to parse hifi host")
		}

		requestURL := base.JoinPath(path)
		requestURL.RawQuery = query.Encode()

		resp, err := h.httpClient.Get(requestURL.String())
		if err != nil {
			continue
		}

		if resp.StatusCode != http.StatusOK {
			_ = resp.Body.Close()
			continue
		}

		return resp, nil
	}

	return nil, cerr.Wrap(client.ErrService).Error("Cannot find a usable hifi server")
}

func (h *Hifi) Search(query string, _ int) (entity.SearchResults, error) {
	resp, err := h.trySend("/search/", url.Values{"s": []string{query}})
	if err != nil {
		return entity.SearchResults{}, cerr.Field("query", query).
			Wrap(err).Error("Failed to call hifi search")
	}
	defer resp.Body.Close()

	var body searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return entity.SearchResults{}, cerr.Wrap(err).Error("Failed to decode hifi search response")
	}

	results := entity.SearchResults{}
	for _, track := range body.Items {
		results.Tracks = append(results.Tracks, entity.Track{
			ID:         strconv.FormatUint(track.ID, 10),
			URL:        track.URL,
			Title:      track.Title,
			DurationMS: track.Duration * 1000,
			Artists: []entity.Artist{{
				ID:   strconv.FormatUint(track.Artist.ID, 10),
				Name: track.Artist.Name,
			}},
			CoverURL: coverURL(track.Album.Cover),
		})
	}

	return results, nil
}

func (h *Hifi) Download(trackURL string) (format.AudioFormat, *bytestream.Stream, error) {
	trackID, err := trackIDFromURL(trackURL)
	if err != nil {
		return format.AudioFormat{}, nil, err
	}

	resp, err := h.trySend("/track/", url.Values{
		"id":      []string{trackID},
		"quality": []string{"LOSSLESS"},
	})
	if err != nil {
		return format.AudioFormat{}, nil, cerr.Field("track_id", trackID).
			Wrap(err).Error("Failed to call hifi track endpoint")
	}
	defer resp.Body.Close()

	// the track endpoint answers with a JSON array; the payload URL sits in
	// the third element
	var body []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return format.AudioFormat{}, nil, cerr.Wrap(err).Error("Failed to decode hifi track response")
	}

	if len(body) < 3 {
		return format.AudioFormat{}, nil, cerr.Wrap(client.ErrService).
			Error("Hifi track response is missing the payload element")
	}

	var payload trackResponse
	if err := json.Unmarshal(body[2], &payload); err != nil || payload.OriginalTrackURL == "" {
		return format.AudioFormat{}, nil, cerr.Wrap(client.ErrService).
			Error("Hifi did not return valid track json")
	}

	streamResp, err := h.httpClient.Get(payload.OriginalTrackURL)
	if err != nil {
		return format.AudioFormat{}, nil, cerr.Wrap(err).Error("Failed to fetch hifi track payload")
	}

	return format.Flac(), bytestream.FromReader(streamResp.Body), nil
}

func coverURL(cover string) string {
	return fmt.Sprintf("https://resources.tidal.com/images/%s/750x750.jpg",
		strings.ReplaceAll(cover, "-", "/"))
}

// trackIDFromURL picks the trailing id out of a tidal track URL.
func trackIDFromURL(trackURL string) (string, error) {
	parsed, err := url.Parse(trackURL)
	if err != nil {
		return "", cerr.Field("url", trackURL).Wrap(client.ErrInvalidURL).
			Error("Failed to parse hifi track URL")
	}

	segments := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	for i := 0; i < len(segments)-1; i++ {
		if segments[i] == "track" && segments[i+1] != "" {
			return segments[i+1], nil
		}
	}

	return "", cerr.Field("url", trackURL).Wrap(client.ErrInvalidURL).
		Error("Hifi track URL is missing a track id")
}

type searchResponse struct {
	Items []searchTrack `json:"items"`
}

type searchTrack struct {
	ID       uint64 `json:"id"`
	Title    string `json:"title"`
	URL      string `json:"url"`
	Duration int    `json:"duration"`
	Artist   struct {
		ID   uint64 `json:"id"`
		Name string `json:"name"`
	} `json:"artist"`
	Album struct {
		ID    uint64 `json:"id"`
		Title string `json:"title"`
		Cover string `json:"cover"`
	} `json:"album"`
}

type trackResponse struct {
	OriginalTrackURL string `json:"OriginalTrackUrl"`
}
