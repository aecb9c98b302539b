package category

// Category classifies MISC expenses. It is optional on an expense.
type Category string

const (
	Toll    Category = "TOLL"
	Parking Category = "PARKING"
	Repair  Category = "REPAIR"
	Other   Category = "OTHER"
)

var all = []Category{Toll, Parking, Repair, Other}

var descriptions = map[Category]string{
	Toll:    "Road and bridge tolls",
	Parking: "Parking fees",
	Repair:  "Vehicle repair and maintenance",
	Other:   "Anything not covered above",
}

func All() []Category {
	out := make([]Category, len(all))
	copy(out, all)
	return out
}

// Names returns the enum as strings, in declaration order.
func Names() []string {
	out := make([]string, len(all))
	for i, c := range all {
		out[i] = string(c)
	}
	return out
}

func (c Category) IsValid() bool {
	_, ok := descriptions[c]
	return ok
}

func (c Category) Description() string {
	return descriptions[c]
}

func (c Category) ToResponse() CategoryResponse {
	return CategoryResponse{
		Name:        string(c),
		Description: c.Description(),
		AppliesTo:   "MISC",
	}
}
