package models

import (
	"fmt"

	"github.com/Julfy0228/WebMessenger/internal/apperr"
)

// AttachmentSpec is the wire shape clients submit with a message. Build
// validates the fields required by the declared kind and returns the typed
// variant; any failure rejects the whole message send.
type AttachmentSpec struct {
	Kind        AttachmentKind `json:"type"`
	URL         string         `json:"url,omitempty"`
	Size        int64          `json:"size,omitempty"`
	Name        string         `json:"name,omitempty"`
	Width       int            `json:"width,omitempty"`
	Height      int            `json:"height,omitempty"`
	Duration    int            `json:"duration,omitempty"`
	Artist      string         `json:"artist,omitempty"`
	Album       string         `json:"album,omitempty"`
	TrackNumber int            `json:"track_number,omitempty"`
	Bitrate     int            `json:"bitrate,omitempty"`
	Latitude    *float64       `json:"latitude,omitempty"`
	Longitude   *float64       `json:"longitude,omitempty"`
}

func (s AttachmentSpec) Build() (Attachment, error) {
	switch s.Kind {
	case AttachmentFile:
		f, err := s.fileMeta()
		if err != nil {
			return nil, err
		}
		return FileAttachment{f}, nil
	case AttachmentDocument:
		f, err := s.fileMeta()
		if err != nil {
			return nil, err
		}
		return DocumentAttachment{f}, nil
	case AttachmentImage:
		f, err := s.fileMeta()
		if err != nil {
			return nil, err
		}
		if s.Width <= 0 || s.Height <= 0 {
			return nil, fmt.Errorf("%w: image attachment requires positive width and height", apperr.ErrBadRequest)
		}
		return ImageAttachment{FileMeta: f, Width: s.Width, Height: s.Height}, nil
	case AttachmentAudio:
		f, err := s.fileMeta()
		if err != nil {
			return nil, err
		}
		if s.Duration <= 0 {
			return nil, fmt.Errorf("%w: audio attachment requires positive duration", apperr.ErrBadRequest)
		}
		return AudioAttachment{
			FileMeta: f, Duration: s.Duration,
			Artist: s.Artist, Album: s.Album,
			TrackNumber: s.TrackNumber, Bitrate: s.Bitrate,
		}, nil
	case AttachmentVideo:
		f, err := s.fileMeta()
		if err != nil {
			return nil, err
		}
		if s.Duration <= 0 {
			return nil, fmt.Errorf("%w: video attachment requires positive duration", apperr.ErrBadRequest)
		}
		if s.Width <= 0 || s.Height <= 0 {
			return nil, fmt.Errorf("%w: video attachment requires positive width and height", apperr.ErrBadRequest)
		}
		return VideoAttachment{FileMeta: f, Duration: s.Duration, Width: s.Width, Height: s.Height}, nil
	case AttachmentLink:
		if s.URL == "" || len(s.URL) > MaxAttachmentURLLen {
			return nil, fmt.Errorf("%w: link attachment requires a url", apperr.ErrBadRequest)
		}
		return LinkAttachment{URL: s.URL}, nil
	case AttachmentLocation:
		if s.Latitude == nil || s.Longitude == nil {
			return nil, fmt.Errorf("%w: location attachment requires latitude and longitude", apperr.ErrBadRequest)
		}
		if *s.Latitude < -90 || *s.Latitude > 90 {
			return nil, fmt.Errorf("%w: latitude out of range [-90, 90]", apperr.ErrBadRequest)
		}
		if *s.Longitude < -180 || *s.Longitude > 180 {
			return nil, fmt.Errorf("%w: longitude out of range [-180, 180]", apperr.ErrBadRequest)
		}
		return LocationAttachment{Latitude: *s.Latitude, Longitude: *s.Longitude}, nil
	}
	return nil, fmt.Errorf("%w: unknown attachment type %q", apperr.ErrBadRequest, s.Kind)
}

func (s AttachmentSpec) fileMeta() (FileMeta, error) {
	if s.URL == "" || len(s.URL) > MaxAttachmentURLLen {
		return FileMeta{}, fmt.Errorf("%w: %s attachment requires a url", apperr.ErrBadRequest, s.Kind)
	}
	if s.Name == "" || len(s.Name) > MaxAttachmentNameLen {
		return FileMeta{}, fmt.Errorf("%w: %s attachment requires a name", apperr.ErrBadRequest, s.Kind)
	}
	if s.Size < 0 {
		return FileMeta{}, fmt.Errorf("%w: negative attachment size", apperr.ErrBadRequest)
	}
	return FileMeta{URL: s.URL, Size: s.Size, Name: s.Name}, nil
}
