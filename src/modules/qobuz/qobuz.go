// Package qobuz implements the Qobuz backend, posing as the Android client
// and signing stream requests with the app secret.
package qobuz

import (
	"crypto/md5"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"trackmux/src/client"
	"trackmux/src/lib/bytestream"
	"trackmux/src/lib/cerr"
	"trackmux/src/lib/format"
	"trackmux/src/music/entity"
)

var _ client.Module = &Qobuz{}

const (
	apiBase   = "http://www.qobuz.com/api.json/0.2"
	userAgent = "Dalvik/2.1.0 (Linux; U; Android 10; Pixel 3 Build/QP1A.190711.020)) QobuzMobileAndroid/5.16.1.5-b21041415"

	// format_id 6 is 16 bit / 44.1kHz FLAC
	flacFormatID = "6"

	pageSize = 20
)

var deviceHeaders = map[string]string{
	"x-device-platform":        "android",
	"x-device-model":           "Pixel 3",
	"x-device-os-version":      "10",
	"x-device-manufacturer-id": "ffffffff-5783-1f51-ffff-ffffef05ac4a",
	"x-app-version":            "5.16.1.5",
}

type Config struct {
	Token     string
	AppID     string
	AppSecret string
}

type Qobuz struct {
	httpClient *http.Client
	config     Config

	// overridable for tests
	baseURL string
}

func New(config Config) *Qobuz {
	return &Qobuz{
		httpClient: &http.Client{
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		config:  config,
		baseURL: apiBase,
	}
}

func (q *Qobuz) Name() string {
	return "qobuz"
}

func (q *Qobuz) URLSupported(trackURL string) bool {
	parsed, err := url.Parse(trackURL)
	if err != nil {
		return false
	}

	return strings.HasSuffix(parsed.Host, "qobuz.com")
}

func (q *Qobuz) SupportedFormats() []format.AudioFormat {
	return []format.AudioFormat{format.Flac()}
}

func (q *Qobuz) Search(query string, page int) (entity.SearchResults, error) {
	resp, err := q.get("/catalog/search", url.Values{
		"query":  []string{query},
		"limit":  []string{strconv.Itoa(pageSize)},
		"offset": []string{strconv.Itoa(page * pageSize)},
	})
	if err != nil {
		return entity.SearchResults{}, cerr.Field("query", query).
			Wrap(err).Error("Failed to call qobuz search")
	}
	defer resp.Body.Close()

	var body searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return entity.SearchResults{}, cerr.Wrap(err).Error("Failed to decode qobuz search response")
	}

	if body.Tracks == nil {
		return entity.SearchResults{}, cerr.Field("message", body.Message).
			Wrap(client.ErrService).Error("Qobuz search reported a failure")
	}

	results := entity.SearchResults{}
	for _, track := range body.Tracks.Items {
		results.Tracks = append(results.Tracks, entity.Track{
			ID:         strconv.FormatUint(track.ID, 10),
			URL:        fmt.Sprintf("https://open.qobuz.com/track/%d", track.ID),
			Title:      track.Title,
			DurationMS: track.Duration * 1000,
			Artists: []entity.Artist{{
				ID:   strconv.FormatUint(track.Performer.ID, 10),
				Name: track.Performer.Name,
			}},
			CoverURL: track.Album.Image.Large,
		})
	}

	return results, nil
}

func (q *Qobuz) Download(trackURL string) (format.AudioFormat, *bytestream.Stream, error) {
	trackID, err := trackIDFromURL(trackURL)
	if err != nil {
		return format.AudioFormat{}, nil, err
	}

	ts := strconv.FormatInt(time.Now().Unix(), 10)
	resp, err := q.get("/track/getFileUrl", url.Values{
		"format_id":   []string{flacFormatID},
		"intent":      []string{"stream"},
		"sample":      []string{"false"},
		"track_id":    []string{trackID},
		"request_ts":  []string{ts},
		"request_sig": []string{q.requestSignature(trackID, ts)},
	})
	if err != nil {
		return format.AudioFormat{}, nil, cerr.Field("track_id", trackID).
			Wrap(err).Error("Failed to call qobuz getFileUrl")
	}
	defer resp.Body.Close()

	var body fileURLResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return format.AudioFormat{}, nil, cerr.Wrap(err).Error("Failed to decode qobuz getFileUrl response")
	}

	if body.URL == "" {
		return format.AudioFormat{}, nil, cerr.Field("message", body.Message).
			Wrap(client.ErrService).Error("Qobuz getFileUrl reported a failure")
	}

	if body.Sample {
		return format.AudioFormat{}, nil, cerr.Wrap(client.ErrService).
			Error("Qobuz only offers a sample of this track")
	}

	if body.MIMEType != "audio/flac" {
		return format.AudioFormat{}, nil, cerr.Field("mime_type", body.MIMEType).
			Wrap(format.ErrUnsupported).Error("Qobuz served an unexpected codec")
	}

	streamResp, err := q.httpClient.Get(body.URL)
	if err != nil {
		return format.AudioFormat{}, nil, cerr.Wrap(err).Error("Failed to fetch qobuz track payload")
	}

	return format.Flac(), bytestream.FromReader(streamResp.Body), nil
}

// requestSignature is the md5 the Qobuz API expects over the concatenated
// getFileUrl params and the app secret.
func (q *Qobuz) requestSignature(trackID string, ts string) string {
	payload := fmt.Sprintf(
		"trackgetFileUrlformat_id%sintent%ssample%strack_id%s%s%s",
		flacFormatID, "stream", "false", trackID, ts, q.config.AppSecret,
	)

	return fmt.Sprintf("%x", md5.Sum([]byte(payload)))
}

func (q *Qobuz) get(path string, query url.Values) (*http.Response, error) {
	query.Set("app_id", q.config.AppID)

	req, err := http.NewRequest(http.MethodGet, q.baseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return nil, cerr.Wrap(err).Error("Failed to build qobuz request")
	}

	for key, value := range deviceHeaders {
		req.Header.Set(key, value)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("x-user-auth-token", q.config.Token)

	resp, err := q.httpClient.Do(req)
	if err != nil {
		return nil, cerr.Wrap(err).Error("Failed to send qobuz request")
	}

	return resp, nil
}

// trackIDFromURL picks the id out of an open.qobuz.com/track/{id} URL.
func trackIDFromURL(trackURL string) (string, error) {
	parsed, err := url.Parse(trackURL)
	if err != nil {
		return "", cerr.Field("url", trackURL).Wrap(client.ErrInvalidURL).
			Error("Failed to parse qobuz track URL")
	}

	segments := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	if len(segments) < 2 || segments[0] != "track" || segments[1] == "" {
		return "", cerr.Field("url", trackURL).Wrap(client.ErrInvalidURL).
			Error("Qobuz track URL is missing a track id")
	}

	return segments[1], nil
}

type searchResponse struct {
	Message string `json:"message"`
	Tracks  *struct {
		Items []searchTrack `json:"items"`
	} `json:"tracks"`
}

type searchTrack struct {
	ID        uint64 `json:"id"`
	Title     string `json:"title"`
	Duration  int    `json:"duration"`
	Performer struct {
		ID   uint64 `json:"id"`
		Name string `json:"name"`
	} `json:"performer"`
	Album struct {
		Image struct {
			Large string `json:"large"`
		} `json:"image"`
	} `json:"album"`
}

type fileURLResponse struct {
	Message  string `json:"message"`
	URL      string `json:"url"`
	MIMEType string `json:"mime_type"`
	Sample   bool   `json:"sample"`
}
