package models

import "time"

// ChatMessage is a normalized live chat message as emitted on the event
// stream. AuthorChannelID identifies the author internally and is not part
// of the wire format.
type ChatMessage struct {
	Author          string    `json:"author"`
	AuthorImage     string    `json:"authorImage"`
	Text            string    `json:"text"`
	PublishedAt     time.Time `json:"publishedAt"`
	AuthorChannelID string    `json:"-"`
}

// ChatPage is one page of live chat messages plus the continuation cursor
// for the next fetch cycle.
type ChatPage struct {
	Messages      []ChatMessage
	NextPageToken string
}
