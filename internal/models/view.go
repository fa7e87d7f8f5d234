package models

import "time"

// AttachmentView is the client-facing shape of one attachment. It is built
// through the tagged union, so a variant only ever exposes its own fields
// (a location never carries a url, a link never carries a size).
type AttachmentView struct {
	ID        uint           `json:"id"`
	Type      AttachmentKind `json:"type"`
	CreatedAt time.Time      `json:"created_at"`

	URL         *string  `json:"url,omitempty"`
	Size        *int64   `json:"size,omitempty"`
	Name        *string  `json:"name,omitempty"`
	Extension   *string  `json:"extension,omitempty"`
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

// NewAttachmentView maps a stored row to its view via the union, with an
// exhaustive switch per variant.
func NewAttachmentView(row AttachmentRow) (AttachmentView, error) {
	a, err := FromRow(row)
	if err != nil {
		return AttachmentView{}, err
	}
	view := AttachmentView{ID: row.ID, Type: a.Kind(), CreatedAt: row.CreatedAt}
	setFile := func(f FileMeta) {
		url, size, name := f.URL, f.Size, f.Name
		view.URL, view.Size, view.Name = &url, &size, &name
		if ext := f.Extension(); ext != "" {
			view.Extension = &ext
		}
	}
	switch v := a.(type) {
	case FileAttachment:
		setFile(v.FileMeta)
	case DocumentAttachment:
		setFile(v.FileMeta)
	case ImageAttachment:
		setFile(v.FileMeta)
		w, h := v.Width, v.Height
		view.Width, view.Height = &w, &h
	case AudioAttachment:
		setFile(v.FileMeta)
		d := v.Duration
		view.Duration = &d
		if v.Artist != "" {
			artist := v.Artist
			view.Artist = &artist
		}
		if v.Album != "" {
			album := v.Album
			view.Album = &album
		}
		if v.TrackNumber != 0 {
			tn := v.TrackNumber
			view.TrackNumber = &tn
		}
		if v.Bitrate != 0 {
			br := v.Bitrate
			view.Bitrate = &br
		}
	case VideoAttachment:
		setFile(v.FileMeta)
		d, w, h := v.Duration, v.Width, v.Height
		view.Duration, view.Width, view.Height = &d, &w, &h
	case LinkAttachment:
		url := v.URL
		view.URL = &url
	case LocationAttachment:
		lat, lon := v.Latitude, v.Longitude
		view.Latitude, view.Longitude = &lat, &lon
	}
	return view, nil
}

// MessageView is the client-facing message shape, attachments in send order.
type MessageView struct {
	ID          uint             `json:"id"`
	ChatID      uint             `json:"chat_id"`
	SenderID    uint             `json:"sender_id"`
	SenderName  string           `json:"sender_name,omitempty"`
	Text        string           `json:"text"`
	SentAt      time.Time        `json:"sent_at"`
	EditedAt    *time.Time       `json:"edited_at,omitempty"`
	IsRead      bool             `json:"is_read"`
	ReadAt      *time.Time       `json:"read_at,omitempty"`
	Attachments []AttachmentView `json:"attachments"`
}

func NewMessageView(m Message) (MessageView, error) {
	view := MessageView{
		ID:          m.ID,
		ChatID:      m.ChatID,
		SenderID:    m.SenderID,
		Text:        m.Text,
		SentAt:      m.SentAt,
		EditedAt:    m.EditedAt,
		IsRead:      m.IsRead,
		ReadAt:      m.ReadAt,
		Attachments: make([]AttachmentView, 0, len(m.Attachments)),
	}
	for _, row := range m.Attachments {
		av, err := NewAttachmentView(row)
		if err != nil {
			return MessageView{}, err
		}
		view.Attachments = append(view.Attachments, av)
	}
	return view, nil
}
