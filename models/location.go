package models

// LocationEntry is one drawable location of a category.
type LocationEntry struct {
	Name  string `json:"name"`
	Image string `json:"image"`
}

// Category groups the entries shown to clients.
type Category struct {
	Name      string          `json:"name"`
	Locations []LocationEntry `json:"locations"`
}
