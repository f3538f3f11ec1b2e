package store

import "github.com/unicef/hope-sub007/pkg/models"

type Operator string

const (
	OpEq      Operator = "="
	OpNe      Operator = "<>"
	OpIn      Operator = "IN"
	OpIsNull  Operator = "IS NULL"
	OpNotNull Operator = "IS NOT NULL"
	OpGt      Operator = ">"
	OpLt      Operator = "<"
)

// Condition compares one column against a value. Conditions in a Query are ANDed.
type Condition struct {
	Column string
	Op     Operator
	Value  any
	Values []any
}

func Eq(column string, value any) Condition {
	return Condition{Column: column, Op: OpEq, Value: value}
}

func Ne(column string, value any) Condition {
	return Condition{Column: column, Op: OpNe, Value: value}
}

func Gt(column string, value any) Condition {
	return Condition{Column: column, Op: OpGt, Value: value}
}

func Lt(column string, value any) Condition {
	return Condition{Column: column, Op: OpLt, Value: value}
}

func IsNull(column string) Condition {
	return Condition{Column: column, Op: OpIsNull}
}

func NotNull(column string) Condition {
	return Condition{Column: column, Op: OpNotNull}
}

// In matches any of values. An empty list matches nothing.
func In[T any](column string, values []T) Condition {
	vals := make([]any, len(values))
	for i, v := range values {
		vals[i] = v
	}
	return Condition{Column: column, Op: OpIn, Values: vals}
}

// InScope restricts a query to originals or to representations.
func InScope(scope models.Scope) Condition {
	return Eq("is_original", scope == models.ScopeOriginal)
}

func Originals() Condition {
	return InScope(models.ScopeOriginal)
}

func Representations() Condition {
	return InScope(models.ScopeRepresentation)
}

func CopiedFrom(originalID string) Condition {
	return Eq("copied_from_id", originalID)
}

func InProgram(programID string) Condition {
	return Eq("program_id", programID)
}

func NotRemoved() Condition {
	return Eq("is_removed", false)
}

type Query struct {
	Conditions []Condition
	Order      []string
	Max        int
}

func Where(conditions ...Condition) Query {
	return Query{Conditions: conditions}
}

func All() Query {
	return Query{}
}

func (q Query) And(conditions ...Condition) Query {
	q.Conditions = append(append([]Condition{}, q.Conditions...), conditions...)
	return q
}

// OrderBy sorts ascending by the given columns.
func (q Query) OrderBy(columns ...string) Query {
	q.Order = columns
	return q
}

func (q Query) Limit(n int) Query {
	q.Max = n
	return q
}

// RepresentationOf finds the copy of originalID owned by programID.
func RepresentationOf(originalID, programID string) Query {
	return Where(Representations(), CopiedFrom(originalID), InProgram(programID))
}

// RepresentationsOf finds every copy of originalID.
func RepresentationsOf(originalID string) Query {
	return Where(Representations(), CopiedFrom(originalID)).OrderBy("created_at", "id")
}

// Chunk splits ids into slices of at most size.
func Chunk[T any](items []T, size int) [][]T {
	if size <= 0 {
		size = len(items)
	}
	var chunks [][]T
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		chunks = append(chunks, items[start:end])
	}
	return chunks
}
