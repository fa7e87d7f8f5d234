package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/Julfy0228/WebMessenger/internal/apperr"
)

type AttachmentKind string

const (
	AttachmentFile     AttachmentKind = "file"
	AttachmentImage    AttachmentKind = "image"
	AttachmentAudio    AttachmentKind = "audio"
	AttachmentVideo    AttachmentKind = "video"
	AttachmentDocument AttachmentKind = "document"
	AttachmentLink     AttachmentKind = "link"
	AttachmentLocation AttachmentKind = "location"
)

const (
	MaxAttachmentURLLen  = 2048
	MaxAttachmentNameLen = 255
)

// Attachment is the tagged union over the seven variants. Persistence maps
// each variant to an AttachmentRow; response mapping switches on Kind, so a
// variant never leaks fields it does not carry.
type Attachment interface {
	Kind() AttachmentKind
	sealed()
}

// FileMeta is shared by the file-like variants (file, image, audio, video,
// document).
type FileMeta struct {
	URL  string
	Size int64
	Name string
}

// Extension is the substring after the last '.' in the name, empty when the
// name has no dot.
func (f FileMeta) Extension() string {
	if i := strings.LastIndex(f.Name, "."); i >= 0 && i < len(f.Name)-1 {
		return f.Name[i+1:]
	}
	return ""
}

type FileAttachment struct{ FileMeta }

type ImageAttachment struct {
	FileMeta
	Width  int
	Height int
}

type AudioAttachment struct {
	FileMeta
	Duration    int
	Artist      string
	Album       string
	TrackNumber int
	Bitrate     int
}

type VideoAttachment struct {
	FileMeta
	Duration int
	Width    int
	Height   int
}

type DocumentAttachment struct{ FileMeta }

type LinkAttachment struct{ URL string }

type LocationAttachment struct {
	Latitude  float64
	Longitude float64
}

func (FileAttachment) Kind() AttachmentKind     { return AttachmentFile }
func (ImageAttachment) Kind() AttachmentKind    { return AttachmentImage }
func (AudioAttachment) Kind() AttachmentKind    { return AttachmentAudio }
func (VideoAttachment) Kind() AttachmentKind    { return AttachmentVideo }
func (DocumentAttachment) Kind() AttachmentKind { return AttachmentDocument }
func (LinkAttachment) Kind() AttachmentKind     { return AttachmentLink }
func (LocationAttachment) Kind() AttachmentKind { return AttachmentLocation }

func (FileAttachment) sealed()     {}
func (ImageAttachment) sealed()    {}
func (AudioAttachment) sealed()    {}
func (VideoAttachment) sealed()    {}
func (DocumentAttachment) sealed() {}
func (LinkAttachment) sealed()     {}
func (LocationAttachment) sealed() {}

// AttachmentRow is the flat storage shape: one table, a kind tag, and
// nullable columns for the union of variant fields.
type AttachmentRow struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	MessageID uint           `gorm:"not null;index" json:"message_id"`
	Position  int            `gorm:"not null" json:"-"`
	Kind      AttachmentKind `gorm:"size:16;not null" json:"kind"`
	CreatedAt time.Time      `json:"created_at"`

	URL         *string  `gorm:"size:2048" json:"url,omitempty"`
	Size        *int64   `json:"size,omitempty"`
	Name        *string  `gorm:"size:255" json:"name,omitempty"`
	Width       *int     `json:"width,omitempty"`
	Height      *int     `json:"height,omitempty"`
	Duration    *int     `json:"duration,omitempty"`
	Artist      *string  `json:"artist,omitempty"`
	Album       *string  `json:"album,omitempty"`
	TrackNumber *int     `json:"track_number,omitempty"`
	Bitrate     *int     `json:"bitrate,omitempty"`
	Latitude    *float64 `json:"latitude,omitempty"`
	Longitude   *float64 `json:"longitude,omitempty"`
}

// ToRow flattens a variant into its storage shape.
func ToRow(a Attachment) AttachmentRow {
	row := AttachmentRow{Kind: a.Kind()}
	setFile := func(f FileMeta) {
		row.URL = &f.URL
		row.Size = &f.Size
		row.Name = &f.Name
	}
	switch v := a.(type) {
	case FileAttachment:
		setFile(v.FileMeta)
	case DocumentAttachment:
		setFile(v.FileMeta)
	case ImageAttachment:
		setFile(v.FileMeta)
		row.Width, row.Height = &v.Width, &v.Height
	case AudioAttachment:
		setFile(v.FileMeta)
		row.Duration = &v.Duration
		row.Artist, row.Album = &v.Artist, &v.Album
		row.TrackNumber, row.Bitrate = &v.TrackNumber, &v.Bitrate
	case VideoAttachment:
		setFile(v.FileMeta)
		row.Duration = &v.Duration
		row.Width, row.Height = &v.Width, &v.Height
	case LinkAttachment:
		row.URL = &v.URL
	case LocationAttachment:
		row.Latitude, row.Longitude = &v.Latitude, &v.Longitude
	}
	return row
}

// FromRow rebuilds the variant a row was stored from.
func FromRow(row AttachmentRow) (Attachment, error) {
	file := func() FileMeta {
		return FileMeta{URL: deref(row.URL), Size: derefInt64(row.Size), Name: deref(row.Name)}
	}
	switch row.Kind {
	case AttachmentFile:
		return FileAttachment{file()}, nil
	case AttachmentDocument:
		return DocumentAttachment{file()}, nil
	case AttachmentImage:
		return ImageAttachment{FileMeta: file(), Width: derefInt(row.Width), Height: derefInt(row.Height)}, nil
	case AttachmentAudio:
		return AudioAttachment{
			FileMeta: file(), Duration: derefInt(row.Duration),
			Artist: deref(row.Artist), Album: deref(row.Album),
			TrackNumber: derefInt(row.TrackNumber), Bitrate: derefInt(row.Bitrate),
		}, nil
	case AttachmentVideo:
		return VideoAttachment{FileMeta: file(), Duration: derefInt(row.Duration), Width: derefInt(row.Width), Height: derefInt(row.Height)}, nil
	case AttachmentLink:
		return LinkAttachment{URL: deref(row.URL)}, nil
	case AttachmentLocation:
		return LocationAttachment{Latitude: derefFloat(row.Latitude), Longitude: derefFloat(row.Longitude)}, nil
	}
	return nil, fmt.Errorf("%w: unknown attachment kind %q", apperr.ErrBadRequest, row.Kind)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefInt(i *int) int {
	if i == nil {
		return 0
	}
	return *i
}

func derefInt64(i *int64) int64 {
	if i == nil {
		return 0
	}
	return *i
}

func derefFloat(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}
