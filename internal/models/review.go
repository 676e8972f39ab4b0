package models

import "time"

// Review is one customer's review of a coffee. A user reviews a
// coffee at most once.
type Review struct {
	ID        int       `json:"id"`
	UserID    int       `json:"user_id"`
	CoffeeID  int       `json:"coffee_id"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
