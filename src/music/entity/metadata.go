package entity

// Metadata is the tag set written to a remuxed container. Title and Artist
// are mandatory, every other field is written only when set.
type Metadata struct {
	Title  string `json:"title"`
	Artist string `json:"artist"`

	Album        string `json:"album,omitempty"`
	AlbumArtist  string `json:"album_artist,omitempty"`
	Composer     string `json:"composer,omitempty"`
	Copyright    string `json:"copyright,omitempty"`
	CreationTime string `json:"creation_time,omitempty"`
	Date         string `json:"date,omitempty"`
	Disc         string `json:"disc,omitempty"`
	Genre        string `json:"genre,omitempty"`
	Language     string `json:"language,omitempty"`
	Performer    string `json:"performer,omitempty"`
	Publisher    string `json:"publisher,omitempty"`
	Track        string `json:"track,omitempty"`
}

// Tags flattens the metadata into the tag dictionary for the output
// container. Unset fields are omitted entirely, never written as empty
// strings.
func (m Metadata) Tags() map[string]string {
	tags := map[string]string{
		"title":  m.Title,
		"artist": m.Artist,
	}

	optional := map[string]string{
		"album":         m.Album,
		"album_artist":  m.AlbumArtist,
		"composer":      m.Composer,
		"copyright":     m.Copyright,
		"creation_time": m.CreationTime,
		"date":          m.Date,
		"disc":          m.Disc,
		"genre":         m.Genre,
		"language":      m.Language,
		"performer":     m.Performer,
		"publisher":     m.Publisher,
		"track":         m.Track,
	}

	for key, value := range optional {
		if value != "" {
			tags[key] = value
		}
	}

	return tags
}
