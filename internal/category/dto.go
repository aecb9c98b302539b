package category

// CategoryResponse describes one category; every category applies to MISC
// expenses only.
type CategoryResponse struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	AppliesTo   string `json:"appliesTo"`
}

type CategoriesResponse struct {
	Categories []CategoryResponse `json:"categories"`
	Optional   bool               `json:"optional"`
}
