package models

// User is a console account. Alerts, preferences and emergency feeds are
// scoped to its ID.
type User struct {
	ID           int    `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"-"`
}
