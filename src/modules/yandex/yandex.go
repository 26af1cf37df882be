// Package yandex implements the Yandex Music backend, signing file info
// requests the way the desktop client does.
package yandex

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
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

var _ client.Module = &Yandex{}

const (
	apiBase      = "https://api.music.yandex.net"
	clientHeader = "YandexMusicDesktopAppWindows/5.18.2"
	userAgent    = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) YandexMusic/5.18.2 Chrome/122.0.6261.156 Electron/29.4.6 Safari/537.36"

	requestedCodecs     = "flac,flac-mp4,aac,aac-mp4,mp3"
	requestedTransports = "raw"
	requestedQuality    = "lossless"
)

var signKey = []byte("kzqU4XhfCaY6B6JTHODeq5")

type Config struct {
	Token string
}

type Yandex struct {
	httpClient *http.Client
	config     Config

	// overridable for tests
	baseURL string
}

func New(config Config) *Yandex {
	return &Yandex{
		httpClient: &http.Client{
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		config:  config,
		baseURL: apiBase,
	}
}

func (y *Yandex) Name() string {
	return "yandex"
}

func (y *Yandex) URLSupported(trackURL string) bool {
	parsed, err := url.Parse(trackURL)
	if err != nil {
		return false
	}

	return strings.HasPrefix(parsed.Host, "music.yandex.")
}

func (y *Yandex) SupportedFormats() []format.AudioFormat {
	return []format.AudioFormat{format.Flac(), format.Aac(0), format.Mp3(0)}
}

func (y *Yandex) Search(query string, page int) (entity.SearchResults, error) {
	resp, err := y.get("/search", url.Values{
		"text": []string{query},
		"type": []string{"track"},
		"page": []string{strconv.Itoa(page)},
	})
	if err != nil {
		return entity.SearchResults{}, cerr.Field("query", query).
			Wrap(err).Error("Failed to call yandex search")
	}
	defer resp.Body.Close()

	var body searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return entity.SearchResults{}, cerr.Wrap(err).Error("Failed to decode yandex search response")
	}

	results := entity.SearchResults{}
	for _, track := range body.Result.Tracks.Results {
		if len(track.Albums) == 0 {
			continue
		}

		artists := []entity.Artist{}
		for _, artist := range track.Artists {
			artists = append(artists, entity.Artist{
				ID:   strconv.FormatUint(artist.ID, 10),
				Name: artist.Name,
			})
		}

		results.Tracks = append(results.Tracks, entity.Track{
			ID:         strconv.FormatUint(track.ID, 10),
			URL:        trackPageURL(track.Albums[0].ID, track.ID),
			Title:      track.Title,
			DurationMS: track.DurationMS,
			Artists:    artists,
			CoverURL:   "https://" + strings.ReplaceAll(track.CoverURI, "%%", "orig"),
		})
	}

	return results, nil
}

func (y *Yandex) Download(trackURL string) (format.AudioFormat, *bytestream.Stream, error) {
	trackID, err := trackIDFromURL(trackURL)
	if err != nil {
		return format.AudioFormat{}, nil, err
	}

	ts := strconv.FormatInt(time.Now().Unix(), 10)
	resp, err := y.get("/get-file-info", url.Values{
		"ts":         []string{ts},
		"trackId":    []string{trackID},
		"quality":    []string{requestedQuality},
		"codecs":     []string{requestedCodecs},
		"transports": []string{requestedTransports},
		"sign":       []string{requestSignature(ts, trackID)},
	})
	if err != nil {
		return format.AudioFormat{}, nil, cerr.Field("track_id", trackID).
			Wrap(err).Error("Failed to call yandex get-file-info")
	}
	defer resp.Body.Close()

	var body fileInfoResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return format.AudioFormat{}, nil, cerr.Wrap(err).Error("Failed to decode yandex file info response")
	}

	info := body.Result.DownloadInfo
	audioFormat, err := audioFormatForCodec(info.Codec, info.Bitrate)
	if err != nil {
		return format.AudioFormat{}, nil, err
	}

	streamResp, err := y.httpClient.Get(info.URL)
	if err != nil {
		return format.AudioFormat{}, nil, cerr.Wrap(err).Error("Failed to fetch yandex track payload")
	}

	return audioFormat, bytestream.FromReader(streamResp.Body), nil
}

func audioFormatForCodec(codec string, bitrate int) (format.AudioFormat, error) {
	switch codec {
	case "mp3":
		return format.Mp3(bitrate), nil
	case "aac-mp4":
		return format.Aac(bitrate), nil
	case "flac-mp4":
		return format.Flac(), nil
	default:
		return format.AudioFormat{}, cerr.Field("codec", codec).
			Wrap(format.ErrUnsupported).Error("Yandex served an unexpected codec")
	}
}

// requestSignature is the HMAC-SHA256 the API expects over the request
// params with commas stripped from the list-valued ones.
func requestSignature(ts string, trackID string) string {
	mac := hmac.New(sha256.New, signKey)
	mac.Write([]byte(ts))
	mac.Write([]byte(trackID))
	mac.Write([]byte(requestedQuality))
	mac.Write([]byte(strings.ReplaceAll(requestedCodecs, ",", "")))
	mac.Write([]byte(strings.ReplaceAll(requestedTransports, ",", "")))

	return base64.RawStdEncoding.EncodeToString(mac.Sum(nil))
}

func (y *Yandex) get(path string, query url.Values) (*http.Response, error) {
	req, err := http.NewRequest(http.MethodGet, y.baseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return nil, cerr.Wrap(err).Error("Failed to build yandex request")
	}

	req.Header.Set("x-yandex-music-client", clientHeader)
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Authorization", "OAuth "+y.config.Token)

	resp, err := y.httpClient.Do(req)
	if err != nil {
		return nil, cerr.Wrap(err).Error("Failed to send yandex request")
	}

	return resp, nil
}

func trackPageURL(albumID uint64, trackID uint64) string {
	return "https://music.yandex.ru/album/" + strconv.FormatUint(albumID, 10) +
		"/track/" + strconv.FormatUint(trackID, 10)
}

// trackIDFromURL picks the id out of a music.yandex.ru/album/{a}/track/{id}
// URL.
func trackIDFromURL(trackURL string) (string, error) {
	parsed, err := url.Parse(trackURL)
	if err != nil {
		return "", cerr.Field("url", trackURL).Wrap(client.ErrInvalidURL).
			Error("Failed to parse yandex track URL")
	}

	segments := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	for i := 0; i < len(segments)-1; i++ {
		if segments[i] == "track" && segments[i+1] != "" {
			return segments[i+1], nil
		}
	}

	return "", cerr.Field("url", trackURL).Wrap(client.ErrInvalidURL).
		Error("Yandex track URL is missing a track id")
}

type searchResponse struct {
	Result struct {
		Tracks struct {
			Results []searchTrack `json:"results"`
		} `json:"tracks"`
	} `json:"result"`
}

type searchTrack struct {
	ID         uint64 `json:"id"`
	Title      string `json:"title"`
	DurationMS int    `json:"durationMs"`
	Artists    []struct {
		ID   uint64 `json:"id"`
		Name string `json:"name"`
	} `json:"artists"`
	Albums []struct {
		ID uint64 `json:"id"`
	} `json:"albums"`
	CoverURI string `json:"coverUri"`
}

type fileInfoResponse struct {
	Result struct {
		DownloadInfo struct {
			Codec   string `json:"codec"`
			Bitrate int    `json:"bitrate"`
			URL     string `json:"url"`
		} `json:"downloadInfo"`
	} `json:"result"`
}
