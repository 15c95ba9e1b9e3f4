package models

import "time"

type ShortLink struct {
	ID        string    `json:"id"`
	Slug      string    `json:"slug"`
	URL       string    `json:"url"`
	UserID    string    `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
}

type CreateLinkRequest struct {
	Link string `json:"link" validate:"required,url"`
	Slug string `json:"slug,omitempty"`
}

type UpdateLinkRequest struct {
	Slug string `json:"slug" validate:"required"`
	URL  string `json:"url" validate:"required,url"`
}

type DeleteLinkRequest struct {
	Slug string `json:"slug" validate:"required"`
}

type SlugAvailability struct {
	Slug      string `json:"slug"`
	Available bool   `json:"available"`
}

type SearchKeyResponse struct {
	Key       string `json:"key"`
	IndexName string `json:"indexName"`
	AppID     string `json:"appId"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// LinkResponse is a link as returned to its owner, with its public short address.
type LinkResponse struct {
	ShortLink
	ShortURL string `json:"shortUrl"`
}
