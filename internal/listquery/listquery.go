// Package listquery assembles the WHERE clause, parameters and pagination window
// shared by every filtered management list.
package listquery

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"
)

// DateLayout is the only accepted format for date filters and form dates.
const DateLayout = "2006-01-02"

// ErrInvalidFilter is returned when a filter value cannot be converted to its column kind.
var ErrInvalidFilter = errors.New("invalid filter value")

// Operator is the comparison applied by a filter.
type Operator string

const (
	OpEq    Operator = "="
	OpNotEq Operator = "<>"
	OpGte   Operator = ">="
	OpLte   Operator = "<="
	// OpContains is a case-insensitive substring match on a single column.
	OpContains Operator = "CONTAINS"
	// OpSearch matches a substring against several comma-separated columns joined with OR.
	OpSearch Operator = "SEARCH"
)

// Kind controls how a raw filter value is converted before binding.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindDate
	// KindBool accepts active/inactive as well as true/false and 1/0.
	KindBool
)

// Filter is one optional user-supplied condition. Filters with an empty value are skipped.
type Filter struct {
	Column   string
	Operator Operator
	Value    string
	Kind     Kind
}

// Condition is a mandatory clause, such as a role scope, applied before user filters.
type Condition struct {
	Expr string
	Args []interface{}
}

// Query is the result of Build.
type Query struct {
	Where    string
	Args     []interface{}
	Page     int
	PageSize int
	Limit    int
	Offset   int
}

var identifier = regexp.MustCompile(`^[a-z_][a-z0-9_]*(\.[a-z_][a-z0-9_]*)?$`)

// Build joins scopes and active filters with AND and derives the pagination window.
func Build(scopes []Condition, filters []Filter, page, pageSize int) (Query, error) {
	if pageSize <= 0 {
		return Query{}, fmt.Errorf("page size must be positive, got %d", pageSize)
	}
	if page < 1 {
		page = 1
	}
	if maxPage := math.MaxInt / pageSize; page > maxPage {
		page = maxPage
	}

	clauses := make([]string, 0, len(scopes)+len(filters))
	args := make([]interface{}, 0, len(scopes)+len(filters))

	for _, scope := range scopes {
		expr := strings.TrimSpace(scope.Expr)
		if expr == "" {
			continue
		}
		clauses = append(clauses, "("+expr+")")
		args = append(args, scope.Args...)
	}

	for _, filter := range filters {
		value := strings.TrimSpace(filter.Value)
		if value == "" {
			continue
		}
		clause, clauseArgs, err := filter.compile(value)
		if err != nil {
			return Query{}, err
		}
		clauses = append(clauses, clause)
		args = append(args, clauseArgs...)
	}

	return Query{
		Where:    strings.Join(clauses, " AND "),
		Args:     args,
		Page:     page,
		PageSize: pageSize,
		Limit:    pageSize,
		Offset:   (page - 1) * pageSize,
	}, nil
}

func (f Filter) compile(value string) (string, []interface{}, error) {
	columns := strings.Split(f.Column, ",")
	for i := range columns {
		columns[i] = strings.TrimSpace(columns[i])
		if !identifier.MatchString(columns[i]) {
			return "", nil, fmt.Errorf("invalid filter column %q", columns[i])
		}
	}
	if len(columns) > 1 && f.Operator != OpSearch {
		return "", nil, fmt.Errorf("operator %s accepts a single column", f.Operator)
	}

	switch f.Operator {
	case OpContains, OpSearch:
		pattern := "%" + escapeLike(strings.ToLower(value)) + "%"
		parts := make([]string, 0, len(columns))
		args := make([]interface{}, 0, len(columns))
		for _, column := range columns {
			parts = append(parts, fmt.Sprintf(`LOWER(%s) LIKE ? ESCAPE '\'`, column))
			args = append(args, pattern)
		}
		if len(parts) == 1 {
			return parts[0], args, nil
		}
		return "(" + strings.Join(parts, " OR ") + ")", args, nil
	case OpEq, OpNotEq, OpGte, OpLte:
		converted, err := convert(f.Kind, value)
		if err != nil {
			return "", nil, fmt.Errorf("%w for %s: %q", ErrInvalidFilter, columns[0], value)
		}
		return fmt.Sprintf("%s %s ?", columns[0], f.Operator), []interface{}{converted}, nil
	default:
		return "", nil, fmt.Errorf("unsupported filter operator %q", f.Operator)
	}
}

func convert(kind Kind, value string) (interface{}, error) {
	switch kind {
	case KindInt:
		return strconv.ParseInt(value, 10, 64)
	case KindDate:
		return time.Parse(DateLayout, value)
	case KindBool:
		switch strings.ToLower(value) {
		case "active", "true", "1":
			return true, nil
		case "inactive", "false", "0":
			return false, nil
		}
		return nil, fmt.Errorf("not a boolean: %q", value)
	default:
		return value, nil
	}
}

func escapeLike(value string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(value)
}

// HasWhere reports whether any scope or filter participated.
func (q Query) HasWhere() bool {
	return q.Where != ""
}

// WhereClause renders the clause with its keyword, or an empty string when nothing is active.
func (q Query) WhereClause() string {
	if !q.HasWhere() {
		return ""
	}
	return " WHERE " + q.Where
}

// SelectSQL renders the paged listing query for a raw FROM/JOIN base.
func (q Query) SelectSQL(base, orderBy string) (string, []interface{}) {
	sql := base + q.WhereClause()
	if orderBy != "" {
		sql += " ORDER BY " + orderBy
	}
	sql += " LIMIT ? OFFSET ?"
	args := append(append([]interface{}{}, q.Args...), q.Limit, q.Offset)
	return sql, args
}

// CountSQL renders the total-count query sharing the same WHERE clause.
func (q Query) CountSQL(from string) (string, []interface{}) {
	return "SELECT COUNT(*) FROM " + from + q.WhereClause(), append([]interface{}{}, q.Args...)
}

// Scope applies the WHERE clause to a gorm query.
func (q Query) Scope(db *gorm.DB) *gorm.DB {
	if !q.HasWhere() {
		return db
	}
	return db.Where(q.Where, q.Args...)
}

// Paginate applies the LIMIT/OFFSET window to a gorm query.
func (q Query) Paginate(db *gorm.DB) *gorm.DB {
	return db.Limit(q.Limit).Offset(q.Offset)
}

// TotalPages reports ceil(total/pageSize), never less than one so pagination controls stay stable.
func TotalPages(total int64, pageSize int) int {
	if pageSize <= 0 || total <= 0 {
		return 1
	}
	return int(math.Ceil(float64(total) / float64(pageSize)))
}

// ParsePage converts the raw page parameter, clamping missing or invalid values to 1.
func ParsePage(raw string) int {
	page, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || page < 1 {
		return 1
	}
	return page
}
