package memory

import (
	"context"
	"fmt"
	"net/http"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/jmoiron/sqlx/reflectx"

	"github.com/unicef/hope-sub007/pkg/store"
)

// table is an in-memory relation over a db-tagged model.
type table[T any] struct {
	name    string
	mu      *sync.RWMutex
	columns *reflectx.StructMap
	rows    map[string]*T
	order   []string
	seq     map[string]int
	next    int
	// conflictKey makes inserts idempotent on a unique key.
	conflictKey []string
}

func newTable[T any](name string, mu *sync.RWMutex) *table[T] {
	return &table[T]{
		name:    name,
		mu:      mu,
		columns: mapper.TypeMap(reflect.TypeOf((*T)(nil)).Elem()),
		rows:    map[string]*T{},
		seq:     map[string]int{},
	}
}

// withConflictKey skips inserted rows that clash with an existing row on columns.
func (t *table[T]) withConflictKey(columns ...string) *table[T] {
	t.conflictKey = columns
	return t
}

// key joins the conflict key values of row; ok is false without a key.
func (t *table[T]) key(row *T) (string, bool) {
	if len(t.conflictKey) == 0 {
		return "", false
	}
	parts := make([]string, len(t.conflictKey))
	for i, column := range t.conflictKey {
		v, _ := t.column(row, column)
		parts[i] = fmt.Sprint(v)
	}
	return strings.Join(parts, "\x00"), true
}

func (t *table[T]) column(row *T, column string) (any, bool) {
	field, ok := t.columns.Names[column]
	if !ok {
		return nil, false
	}
	return normalize(reflectx.FieldByIndexesReadOnly(reflect.ValueOf(row).Elem(), field.Index).Interface()), true
}

func (t *table[T]) id(row *T) string {
	v, _ := t.column(row, "id")
	s, _ := v.(string)
	return s
}

func (t *table[T]) Get(ctx context.Context, id string) (*T, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	row, ok := t.rows[id]
	if !ok {
		return nil, store.NotFound(t.name, id)
	}
	return clone(row), nil
}

func (t *table[T]) Find(ctx context.Context, q store.Query) ([]*T, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.find(q)
}

func (t *table[T]) find(q store.Query) ([]*T, error) {
	var matched []*T
	for _, id := range t.order {
		row := t.rows[id]
		ok, err := t.matches(row, q.Conditions)
		if err != nil {
			return nil, err
		}
		if ok {
			matched = append(matched, row)
		}
	}

	var sortErr error
	order := append(append([]string{}, q.Order...), "id")
	sort.SliceStable(matched, func(i, j int) bool {
		for _, column := range order {
			a, _ := t.column(matched[i], column)
			b, _ := t.column(matched[j], column)
			c, err := compare(a, b)
			if err != nil {
				sortErr = err
				return false
			}
			if c != 0 {
				return c < 0
			}
		}
		return t.seq[t.id(matched[i])] < t.seq[t.id(matched[j])]
	})
	if sortErr != nil {
		return nil, httperror.WrapError(http.StatusInternalServerError, sortErr)
	}

	if q.Max > 0 && len(matched) > q.Max {
		matched = matched[:q.Max]
	}

	out := make([]*T, len(matched))
	for i, row := range matched {
		out[i] = clone(row)
	}
	return out, nil
}

func (t *table[T]) First(ctx context.Context, q store.Query) (*T, error) {
	rows, err := t.Find(ctx, q.Limit(1))
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

func (t *table[T]) Count(ctx context.Context, q store.Query) (int, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	count := 0
	for _, id := range t.order {
		ok, err := t.matches(t.rows[id], q.Conditions)
		if err != nil {
			return 0, err
		}
		if ok {
			count++
		}
	}
	return count, nil
}

func (t *table[T]) Insert(ctx context.Context, rows ...*T) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	keys := map[string]struct{}{}
	if len(t.conflictKey) > 0 {
		for _, id := range t.order {
			k, _ := t.key(t.rows[id])
			keys[k] = struct{}{}
		}
	}

	batch := map[string]struct{}{}
	var accepted []*T
	for _, row := range rows {
		id := t.id(row)
		if id == "" {
			return httperror.NewHTTPErrorf(http.StatusBadRequest, "%s row without id", t.name)
		}
		if k, ok := t.key(row); ok {
			if _, clash := keys[k]; clash {
				continue
			}
			keys[k] = struct{}{}
		}
		_, exists := t.rows[id]
		_, repeated := batch[id]
		if exists || repeated {
			return httperror.NewHTTPErrorf(http.StatusConflict, "%s %s already exists", t.name, id)
		}
		batch[id] = struct{}{}
		accepted = append(accepted, row)
	}

	for _, row := range accepted {
		id := t.id(row)
		t.rows[id] = clone(row)
		t.order = append(t.order, id)
		t.next++
		t.seq[id] = t.next
	}
	return nil
}

func (t *table[T]) Update(ctx context.Context, rows ...*T) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, row := range rows {
		id := t.id(row)
		if _, ok := t.rows[id]; !ok {
			return store.NotFound(t.name, id)
		}
	}
	for _, row := range rows {
		t.rows[t.id(row)] = clone(row)
	}
	return nil
}

func (t *table[T]) Delete(ctx context.Context, q store.Query) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	doomed := map[string]struct{}{}
	for _, id := range t.order {
		ok, err := t.matches(t.rows[id], q.Conditions)
		if err != nil {
			return 0, err
		}
		if ok {
			doomed[id] = struct{}{}
		}
	}
	if len(doomed) == 0 {
		return 0, nil
	}

	kept := t.order[:0:0]
	for _, id := range t.order {
		if _, ok := doomed[id]; ok {
			delete(t.rows, id)
			delete(t.seq, id)
			continue
		}
		kept = append(kept, id)
	}
	t.order = kept
	return len(doomed), nil
}

func (t *table[T]) matches(row *T, conditions []store.Condition) (bool, error) {
	for _, cond := range conditions {
		value, ok := t.column(row, cond.Column)
		if !ok {
			return false, httperror.NewHTTPErrorf(http.StatusInternalServerError, "%s has no column %s", t.name, cond.Column)
		}
		hit, err := evaluate(value, cond)
		if err != nil {
			return false, httperror.WrapError(http.StatusInternalServerError, err)
		}
		if !hit {
			return false, nil
		}
	}
	return true, nil
}

func evaluate(value any, cond store.Condition) (bool, error) {
	switch cond.Op {
	case store.OpIsNull:
		return value == nil, nil
	case store.OpNotNull:
		return value != nil, nil
	case store.OpIn:
		if value == nil {
			return false, nil
		}
		for _, candidate := range cond.Values {
			c, err := compare(value, normalize(candidate))
			if err != nil {
				return false, err
			}
			if c == 0 {
				return true, nil
			}
		}
		return false, nil
	}

	// SQL semantics: comparisons against NULL never match.
	want := normalize(cond.Value)
	if value == nil || want == nil {
		return false, nil
	}
	c, err := compare(value, want)
	if err != nil {
		return false, err
	}
	switch cond.Op {
	case store.OpEq:
		return c == 0, nil
	case store.OpNe:
		return c != 0, nil
	case store.OpGt:
		return c > 0, nil
	case store.OpLt:
		return c < 0, nil
	}
	return false, nil
}

// snapshot captures the table for rollback. Rows are never mutated in place
// so a shallow copy is enough.
func (t *table[T]) snapshot() func() {
	t.mu.RLock()
	rows := make(map[string]*T, len(t.rows))
	for k, v := range t.rows {
		rows[k] = v
	}
	seq := make(map[string]int, len(t.seq))
	for k, v := range t.seq {
		seq[k] = v
	}
	order := append([]string{}, t.order...)
	next := t.next
	t.mu.RUnlock()

	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		t.rows, t.seq, t.order, t.next = rows, seq, order, next
	}
}
