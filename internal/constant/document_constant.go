package constant

// Document categories (closed enumeration, enforced upstream of insert).
const (
	DocumentCategoryNarrative   = "narrative"
	DocumentCategoryPersuasive  = "persuasive"
	DocumentCategoryExpository  = "expository"
	DocumentCategoryDescriptive = "descriptive"
	DocumentCategoryReflective  = "reflective"
)

// DocumentCategories lists every legal category value.
var DocumentCategories = []string{
	DocumentCategoryNarrative,
	DocumentCategoryPersuasive,
	DocumentCategoryExpository,
	DocumentCategoryDescriptive,
	DocumentCategoryReflective,
}

// IsValidDocumentCategory reports whether c is in the closed enumeration.
func IsValidDocumentCategory(c string) bool {
	for _, valid := range DocumentCategories {
		if c == valid {
			return true
		}
	}
	return false
}
