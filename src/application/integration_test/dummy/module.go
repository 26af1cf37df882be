package dummy

import (
	"bytes"
	"io"
	"strings"

	"trackmux/src/client"
	"trackmux/src/lib/bytestream"
	"trackmux/src/lib/format"
	"trackmux/src/music/entity"
)

var _ client.Module = &Module{}

// Module serves canned track payloads keyed by URL.
func NewDummyModule(name string, urlPrefix string) *Module {
	return &Module{
		ModuleName: name,
		URLPrefix:  urlPrefix,
		Tracks:     make(map[string]ModuleTrack),
	}
}

type ModuleTrack struct {
	Format format.AudioFormat
	Data   []byte
}

type Module struct {
	Unavailable bool
	ModuleName  string
	URLPrefix   string
	Tracks      map[string]ModuleTrack
	Results     entity.SearchResults
}

func (m *Module) AddTrack(url string, trackFormat format.AudioFormat, data []byte) {
	m.Tracks[url] = ModuleTrack{
		Format: trackFormat,
		Data:   append([]byte{}, data...),
	}
}

func (m *Module) Name() string {
	return m.ModuleName
}

func (m *Module) URLSupported(url string) bool {
	return strings.HasPrefix(url, m.URLPrefix)
}

func (m *Module) SupportedFormats() []format.AudioFormat {
	return []format.AudioFormat{format.Flac(), format.Mp3(320)}
}

func (m *Module) Search(_ string, _ int) (entity.SearchResults, error) {
	if m.Unavailable {
		return entity.SearchResults{}, NetworkFailure
	}

	return m.Results, nil
}

func (m *Module) Download(url string) (format.AudioFormat, *bytestream.Stream, error) {
	if m.Unavailable {
		return format.AudioFormat{}, nil, NetworkFailure
	}

	track, ok := m.Tracks[url]
	if !ok {
		return format.AudioFormat{}, nil, NotFound
	}

	return track.Format, bytestream.FromReader(io.NopCloser(bytes.NewReader(track.Data))), nil
}
