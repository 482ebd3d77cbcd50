package models

import "time"

type StudyGroup struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	Course      string    `json:"course"`
	Topic       *string   `json:"topic"`
	CreatorID   int64     `json:"creator_id"`
	MaxMembers  int       `json:"max_members"`
	IsPrivate   bool      `json:"is_private"`
	Tags        *[]string `json:"tags"`
	CreatedAt   time.Time `json:"created_at"`
}

type StudyGroupSummary struct {
	StudyGroup
	MemberCount int `json:"member_count"`
}

type GroupMessage struct {
	ID        int64     `json:"id"`
	GroupID   int64     `json:"group_id"`
	SenderID  int64     `json:"sender_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}
