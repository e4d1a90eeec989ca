package domain

import "time"

// Contact is a ticket requester. Email is unique case-insensitively.
type Contact struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Company   string    `json:"company"`
	CreatedAt time.Time `json:"createdAt"`
}

// Category groups tickets; Label is matched case-insensitively on import.
type Category struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	Position int    `json:"position"`
}
