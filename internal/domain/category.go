package domain

import "time"

// Category is a label shared globally across users. Names are unique.
type Category struct {
	ID        string
	Name      string
	CreatedAt time.Time
}
