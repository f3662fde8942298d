package listquery

// Field maps a query-string parameter onto a filter column.
type Field struct {
	Param    string
	Column   string
	Operator Operator
	Kind     Kind
}

// Fields is the declarative filter set of one list page.
type Fields []Field

// Bind reads every field's parameter through get and returns the resulting filters.
func (fs Fields) Bind(get func(param string) string) []Filter {
	filters := make([]Filter, 0, len(fs))
	for _, field := range fs {
		filters = append(filters, Filter{
			Column:   field.Column,
			Operator: field.Operator,
			Value:    get(field.Param),
			Kind:     field.Kind,
		})
	}
	return filters
}
