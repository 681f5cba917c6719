package domain

import "time"

// DefaultCategoryColor is applied when a category is created without a color.
const DefaultCategoryColor = "#6c757d"

// Category groups tickets. Names are unique.
type Category struct {
	ID          string
	Name        string
	Description string
	Color       string
	CreatedAt   time.Time
}
