package domain

import "strings"

// DefaultMusic is used when a request does not name a track.
const DefaultMusic = "pwr"

// MusicTrack is one entry of the background score catalog.
type MusicTrack struct {
	Code string `json:"code" yaml:"code"`
	Name string `json:"name" yaml:"name"`
}

// DefaultMusicTracks is the catalog shipped with the render engine.
var DefaultMusicTracks = []MusicTrack{
	{Code: "pwr", Name: "Phoenix Wright: Ace Attorney"},
	{Code: "jfa", Name: "Justice for All"},
	{Code: "tat", Name: "Trials and Tribulations"},
	{Code: "rnd", Name: "Random"},
}

// MusicCatalog validates music codes.
type MusicCatalog struct {
	tracks []MusicTrack
	byCode map[string]MusicTrack
}

// NewMusicCatalog builds a catalog; an empty list yields DefaultMusicTracks.
func NewMusicCatalog(tracks []MusicTrack) *MusicCatalog {
	if len(tracks) == 0 {
		tracks = DefaultMusicTracks
	}
	c := &MusicCatalog{
		tracks: append([]MusicTrack(nil), tracks...),
		byCode: make(map[string]MusicTrack, len(tracks)),
	}
	for _, t := range tracks {
		c.byCode[strings.ToLower(t.Code)] = t
	}
	return c
}

// Lookup returns the track for code, case-insensitively.
func (c *MusicCatalog) Lookup(code string) (MusicTrack, bool) {
	t, ok := c.byCode[strings.ToLower(strings.TrimSpace(code))]
	return t, ok
}

// Tracks returns the catalog in declaration order.
func (c *MusicCatalog) Tracks() []MusicTrack {
	return append([]MusicTrack(nil), c.tracks...)
}

// Codes returns the track codes in declaration order.
func (c *MusicCatalog) Codes() []string {
	codes := make([]string, len(c.tracks))
	for i, t := range c.tracks {
		codes[i] = t.Code
	}
	return codes
}
