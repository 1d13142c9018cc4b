package domain

import "time"

type User struct {
	ID        string
	Email     string
	Name      string
	Verified  bool
	CreatedAt time.Time
}
