package entity

// Actor identifies the user performing a workflow action.
type Actor struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}
