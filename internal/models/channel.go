package models

// ChannelMeta is resolved display information for a channel id
type ChannelMeta struct {
	ChannelID    string  `json:"channel_id"`
	Title        *string `json:"title,omitempty"`
	Handle       *string `json:"handle,omitempty"`
	ThumbnailURL *string `json:"thumbnail_url,omitempty"`
}
