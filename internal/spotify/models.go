package spotify

// RepeatMode is the player's repeat setting.
type RepeatMode string

const (
	RepeatOff     RepeatMode = "off"
	RepeatContext RepeatMode = "context"
	RepeatTrack   RepeatMode = "track"
)

var repeatCycle = []RepeatMode{RepeatOff, RepeatContext, RepeatTrack}

// Next returns the following mode in the off, context, track cycle.
// Unknown modes step to off.
func (m RepeatMode) Next() RepeatMode {
	for i, mode := range repeatCycle {
		if mode == m {
			return repeatCycle[(i+1)%len(repeatCycle)]
		}
	}
	return RepeatOff
}

// Valid reports whether m is a known mode.
func (m RepeatMode) Valid() bool {
	for _, mode := range repeatCycle {
		if mode == m {
			return true
		}
	}
	return false
}

// Device is a Spotify Connect device.
type Device struct {
	ID               string `json:"id"`
	IsActive         bool   `json:"is_active"`
	IsPrivateSession bool   `json:"is_private_session"`
	IsRestricted     bool   `json:"is_restricted"`
	Name             string `json:"name"`
	Type             string `json:"type"`
	VolumePercent    int    `json:"volume_percent"`
}

// Image is an artwork resource.
type Image struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// Artist is a simplified artist object.
type Artist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URI  string `json:"uri"`
}

// HydratedArtist is the full artist object.
type HydratedArtist struct {
	Artist
	Followers struct {
		Total int `json:"total"`
	} `json:"followers"`
	Genres     []string `json:"genres"`
	Images     []Image  `json:"images"`
	Popularity int      `json:"popularity"`
}

// Album is a simplified album object.
type Album struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	AlbumType   string   `json:"album_type"`
	Artists     []Artist `json:"artists"`
	Images      []Image  `json:"images"`
	ReleaseDate string   `json:"release_date"`
	TotalTracks int      `json:"total_tracks"`
	URI         string   `json:"uri"`
}

// Track is a full track object.
type Track struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Album      Album    `json:"album"`
	Artists    []Artist `json:"artists"`
	DurationMS int      `json:"duration_ms"`
	Explicit   bool     `json:"explicit"`
	IsLocal    bool     `json:"is_local"`
	URI        string   `json:"uri"`
}

// PlaybackContext is the playlist, album or artist being played.
type PlaybackContext struct {
	Type string `json:"type"`
	URI  string `json:"uri"`
}

// PlaybackState is the reply of GET /me/player.
type PlaybackState struct {
	Device               Device           `json:"device"`
	ShuffleState         bool             `json:"shuffle_state"`
	RepeatState          RepeatMode       `json:"repeat_state"`
	Timestamp            int64            `json:"timestamp"`
	Context              *PlaybackContext `json:"context"`
	ProgressMS           int              `json:"progress_ms"`
	IsPlaying            bool             `json:"is_playing"`
	CurrentlyPlayingType string           `json:"currently_playing_type"`
	Item                 *Track           `json:"item"`
}

// TrackID returns the current track ID, or "" when nothing is loaded.
func (s *PlaybackState) TrackID() string {
	if s == nil || s.Item == nil {
		return ""
	}
	return s.Item.ID
}

// ArtistID returns the first artist of the current track, or "".
func (s *PlaybackState) ArtistID() string {
	if s == nil || s.Item == nil || len(s.Item.Artists) == 0 {
		return ""
	}
	return s.Item.Artists[0].ID
}

// Queue is the reply of GET /me/player/queue.
type Queue struct {
	CurrentlyPlaying *Track  `json:"currently_playing"`
	Queue            []Track `json:"queue"`
}
