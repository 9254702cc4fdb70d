package catalog

import (
	"strings"
	"time"
)

// MediaType distinguishes movies from TV episodes.
type MediaType string

const (
	MediaTypeMovie MediaType = "movie"
	MediaTypeTV    MediaType = "tv"
)

// ScanStatus represents the metadata-extraction lifecycle of a media file.
type ScanStatus string

const (
	ScanPending   ScanStatus = "pending"
	ScanScanning  ScanStatus = "scanning"
	ScanCompleted ScanStatus = "completed"
	ScanError     ScanStatus = "error"
)

// ProcessStatus represents the edit-application lifecycle of a media file.
type ProcessStatus string

const (
	ProcessNone       ProcessStatus = "none"
	ProcessPending    ProcessStatus = "pending"
	ProcessQueued     ProcessStatus = "queued"
	ProcessProcessing ProcessStatus = "processing"
	ProcessCompleted  ProcessStatus = "completed"
	ProcessError      ProcessStatus = "error"
)

// JobStatus represents the lifecycle of a processing job.
//
// queued → processing → {completed | failed}; processing → queued happens
// only through orphan recovery after a daemon restart.
type JobStatus string

const (
	JobQueued     JobStatus = "queued"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

var jobStatuses = map[JobStatus]struct{}{
	JobQueued:     {},
	JobProcessing: {},
	JobCompleted:  {},
	JobFailed:     {},
}

// ParseJobStatus converts a string into a known JobStatus.
func ParseJobStatus(value string) (JobStatus, bool) {
	normalized := JobStatus(strings.ToLower(strings.TrimSpace(value)))
	_, ok := jobStatuses[normalized]
	return normalized, ok
}

// IsTerminal reports whether a job status is final.
func (s JobStatus) IsTerminal() bool {
	return s == JobCompleted || s == JobFailed
}

// TrackKind discriminates audio from subtitle tracks.
type TrackKind string

const (
	TrackAudio    TrackKind = "audio"
	TrackSubtitle TrackKind = "subtitle"
)

// ParseTrackKind converts a string into a known TrackKind.
func ParseTrackKind(value string) (TrackKind, bool) {
	switch TrackKind(strings.ToLower(strings.TrimSpace(value))) {
	case TrackAudio:
		return TrackAudio, true
	case TrackSubtitle:
		return TrackSubtitle, true
	default:
		return "", false
	}
}

// Folder is a configured library directory owning media files.
type Folder struct {
	ID          int64
	Path        string
	Name        string
	Active      bool
	CreatedAt   time.Time
	LastScanned *time.Time
}

// File is a cataloged media file.
type File struct {
	ID            int64
	FolderID      int64
	Path          string
	Filename      string
	Size          int64
	ModifiedAt    time.Time
	MediaType     MediaType
	Title         string
	SeriesName    string
	Season        int
	Episode       int
	Duration      float64
	VideoCodec    string
	Resolution    string
	ScanStatus    ScanStatus
	ProcessStatus ProcessStatus
	ErrorMessage  string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Track is one audio or subtitle stream of a file. Original fields are probe
// facts and never change; NewTitle/NewLanguage are staged operator edits that
// take effect when a job incorporating them completes.
type Track struct {
	ID        int64
	FileID    int64
	Kind      TrackKind
	Index     int
	Original  TrackFacts
	Edit      TrackEdit
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TrackFacts holds the read-only probe facts for a track.
type TrackFacts struct {
	Title      string
	Language   string
	Codec      string
	Channels   int  // audio only
	SampleRate int  // audio only
	Forced     bool // subtitle only
	Default    bool // subtitle only
}

// TrackEdit holds the staged metadata changes for a track.
type TrackEdit struct {
	Title    string
	Language string
	Modified bool
}

// Job is one queued application of staged edits to a file.
type Job struct {
	ID           int64
	FileID       int64
	Status       JobStatus
	Progress     float64
	ErrorMessage string
	TempPath     string
	CreatedAt    time.Time
	StartedAt    *time.Time
	CompletedAt  *time.Time
}

// Setting is one settings-store row.
type Setting struct {
	Key         string
	Value       string
	Description string
	UpdatedAt   time.Time
}

// Summary aggregates catalog counts for status displays.
type Summary struct {
	Folders        int
	Files          int
	FilesScanned   int
	FilesScanning  int
	FilesScanError int
	Jobs           map[JobStatus]int
}
