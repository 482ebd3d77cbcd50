package models

import "time"

type User struct {
	ID            int64     `json:"id"`
	Fid           int64     `json:"fid"`
	WalletAddress string    `json:"wallet_address"`
	DisplayName   string    `json:"display_name"`
	Role          string    `json:"role"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type PaginationMeta struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}
