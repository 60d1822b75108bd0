package entity

// VideoMetadata is the normalized description of one remote video.
type VideoMetadata struct {
	Title           string             `json:"title"`
	Author          string             `json:"author"`
	DurationSeconds int64              `json:"durationSeconds"`
	ThumbnailURL    string             `json:"thumbnailUrl"`
	ViewCount       int64              `json:"viewCount"`
	Formats         []FormatDescriptor `json:"formats"`
}

// FormatDescriptor describes one available encoding of a video. At least one
// of HasAudio and HasVideo is set.
type FormatDescriptor struct {
	FormatID      string `json:"formatId"`
	QualityLabel  string `json:"qualityLabel"`
	Container     string `json:"container"`
	HasAudio      bool   `json:"hasAudio"`
	HasVideo      bool   `json:"hasVideo"`
	ContentLength *int64 `json:"contentLength,omitempty"`
	Bitrate       *int   `json:"bitrate,omitempty"`
	FPS           *int   `json:"fps,omitempty"`
}

// RawVideo is what a provider returns before normalization.
type RawVideo struct {
	ID         string
	Title      string
	Author     string
	Duration   int64
	ViewCount  int64
	Thumbnails []RawThumbnail
	Formats    []RawFormat
}

type RawThumbnail struct {
	URL    string
	Width  int
	Height int
}

type RawFormat struct {
	Itag          int
	MimeType      string
	Quality       string
	QualityLabel  string
	HasAudio      bool
	HasVideo      bool
	ContentLength int64
	Bitrate       int
	FPS           int
}
