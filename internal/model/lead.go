// internal/model/lead.go
package model

type Lead struct {
	ID           int64   `db:"id" json:"id"`
	BusinessName string  `db:"business_name" json:"business_name"`
	ContactName  string  `db:"contact_name" json:"contact_name"`
	Email        string  `db:"email" json:"email"`
	Phone        string  `db:"phone" json:"phone"`
	City         string  `db:"city" json:"city"`
	Score        float64 `db:"score" json:"score"`
}
