package models

import "time"

type Resource struct {
	ID          int64     `json:"id"`
	UploaderID  int64     `json:"uploader_id"`
	Title       string    `json:"title"`
	Description *string   `json:"description,omitempty"`
	FileURL     string    `json:"file_url"`
	FileType    string    `json:"file_type"`
	FileSize    int64     `json:"file_size"`
	Course      string    `json:"course"`
	Topic       *string   `json:"topic"`
	PriceMicro  int64     `json:"price_micro"`
	Downloads   int       `json:"downloads"`
	Tags        *[]string `json:"tags"`
	CreatedAt   time.Time `json:"created_at"`
}
