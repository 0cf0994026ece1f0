package domain

// Equipment is an item of the static reservation catalog.
type Equipment struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Category    string `json:"category"`
	Available   int    `json:"available"`
	Description string `json:"description"`
}
