// Package client routes search, download and remux requests to a registered
// set of service modules. Modules are consulted in registration order and
// the earliest match wins; a failing match is never retried on a later
// module.
package client

import (
	"errors"
	"net/http"

	"trackmux/src/lib/bytestream"
	"trackmux/src/lib/cerr"
	"trackmux/src/lib/format"
	"trackmux/src/music/entity"
	"trackmux/src/remux"

	"github.com/apex/log"
)

var (
	// ErrNoAvailableModules is returned when no registered module matches a
	// download URL or a service name.
	ErrNoAvailableModules = errors.New("no available modules")

	// ErrInvalidURL is returned by modules for URLs they claim but cannot
	// pick apart.
	ErrInvalidURL = errors.New("invalid url")

	// ErrService marks an opaque failure reported by a backing service.
	ErrService = errors.New("service error")
)

// Module is the capability set every backend service implements.
type Module interface {
	Name() string
	URLSupported(url string) bool
	SupportedFormats() []format.AudioFormat
	Search(query string, page int) (entity.SearchResults, error)
	Download(url string) (format.AudioFormat, *bytestream.Stream, error)
}

type Client struct {
	modules    []Module
	engine     remux.Engine
	httpClient *http.Client
}

func NewClient(engine remux.Engine) *Client {
	return &Client{
		engine:     engine,
		httpClient: http.DefaultClient,
	}
}

// AddModule registers a module. Registration order is dispatch order.
func (c *Client) AddModule(module Module) {
	c.modules = append(c.modules, module)
}

func (c *Client) ModuleExists(moduleName string) bool {
	for _, module := range c.modules {
		if module.Name() == moduleName {
			return true
		}
	}

	return false
}

// Download hands the URL to the first module that supports it.
func (c *Client) Download(url string) (format.AudioFormat, *bytestream.Stream, error) {
	for _, module := range c.modules {
		if !module.URLSupported(url) {
			continue
		}

		log.WithFields(log.Fields{
			"module": module.Name(),
			"url":    url,
		}).Info("Dispatching download")

		return module.Download(url)
	}

	return format.AudioFormat{}, nil, cerr.Field("url", url).
		Wrap(ErrNoAvailableModules).Error("No module supports this URL")
}

// DownloadCover fetches cover art over plain HTTP, deriving the cover format
// from the response content type. jpeg is assumed when the header is absent.
func (c *Client) DownloadCover(url string) (format.CoverFormat, *bytestream.Stream, error) {
	resp, err := c.httpClient.Get(url)
	if err != nil {
		return "", nil, cerr.Field("url", url).
			Wrap(err).Error("Failed to fetch cover")
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/jpeg"
	}

	coverFormat, err := format.ParseCover(contentType)
	if err != nil {
		_ = resp.Body.Close()
		return "", nil, cerr.Field("content_type", contentType).
			Wrap(ErrService).Error("Cover has an unsupported content type")
	}

	return coverFormat, bytestream.FromReader(resp.Body), nil
}

// Search hands the query to the module whose name matches the service
// exactly.
func (c *Client) Search(serviceName string, query string, page int) (entity.SearchResults, error) {
	for _, module := range c.modules {
		if module.Name() != serviceName {
			continue
		}

		return module.Search(query, page)
	}

	return entity.SearchResults{}, cerr.Field("service_name", serviceName).
		Wrap(ErrNoAvailableModules).Error("No module is registered under this service name")
}

// Remux merges a downloaded audio stream and optional cover into one tagged
// container, returned as a stream in the same audio format.
func (c *Client) Remux(audio remux.AudioInput, cover *remux.CoverInput, meta entity.Metadata) (format.AudioFormat, *bytestream.Stream, error) {
	outStream, err := c.engine.Remux(audio, cover, meta)
	if err != nil {
		return format.AudioFormat{}, nil, cerr.Wrap(err).Error("Failed to remux track")
	}

	return audio.Format, outStream, nil
}
