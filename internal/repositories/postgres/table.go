package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"reflect"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/unicef/hope-sub007/pkg/platform/database"
	"github.com/unicef/hope-sub007/pkg/platform/tracing"
	"github.com/unicef/hope-sub007/pkg/store"
)

const insertChunkSize = 500

// table maps one model onto one relation.
type table[T any] struct {
	name   string
	db     database.DB
	logger ectologger.Logger
	st     *database.Struct
	// conflictKey makes inserts idempotent on a unique key.
	conflictKey []string
}

func newTable[T any](name string, db database.DB, logger ectologger.Logger) *table[T] {
	return &table[T]{
		name:   name,
		db:     db,
		logger: logger,
		st:     database.NewStruct(new(T)),
	}
}

// withConflictKey skips inserted rows that clash with an existing row on columns.
func (t *table[T]) withConflictKey(columns ...string) *table[T] {
	t.conflictKey = columns
	return t
}

func (t *table[T]) Get(ctx context.Context, id string) (*T, error) {
	ctx, span := tracing.StartSpan(ctx, fmt.Sprintf("postgres.%s.Get", t.name))
	defer span.End()

	sb := t.st.SelectFrom(t.name)
	sb.Where(sb.Equal("id", id))
	query, args := sb.Build()

	row := new(T)
	if err := t.db.Executor(ctx).GetContext(ctx, row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.NotFound(t.name, id)
		}
		t.logger.WithContext(ctx).WithError(err).WithField("id", id).Errorf("failed to get %s", t.name)
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to get %s: %v", t.name, err)
	}
	return row, nil
}

func (t *table[T]) Find(ctx context.Context, q store.Query) ([]*T, error) {
	ctx, span := tracing.StartSpan(ctx, fmt.Sprintf("postgres.%s.Find", t.name))
	defer span.End()

	sb := t.st.SelectFrom(t.name)
	if exprs := where(sb, q.Conditions); len(exprs) > 0 {
		sb.Where(exprs...)
	}
	order := append(append([]string{}, q.Order...), "id")
	sb.OrderBy(order...).Asc()
	if q.Max > 0 {
		sb.Limit(q.Max)
	}
	query, args := sb.Build()

	var rows []*T
	if err := t.db.Executor(ctx).SelectContext(ctx, &rows, query, args...); err != nil {
		t.logger.WithContext(ctx).WithError(err).Errorf("failed to find %s", t.name)
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to find %s: %v", t.name, err)
	}
	return rows, nil
}

func (t *table[T]) First(ctx context.Context, q store.Query) (*T, error) {
	rows, err := t.Find(ctx, q.Limit(1))
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

func (t *table[T]) Count(ctx context.Context, q store.Query) (int, error) {
	ctx, span := tracing.StartSpan(ctx, fmt.Sprintf("postgres.%s.Count", t.name))
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select("COUNT(*)").From(t.name)
	if exprs := where(sb, q.Conditions); len(exprs) > 0 {
		sb.Where(exprs...)
	}
	query, args := sb.Build()

	var count int
	if err := t.db.Executor(ctx).GetContext(ctx, &count, query, args...); err != nil {
		t.logger.WithContext(ctx).WithError(err).Errorf("failed to count %s", t.name)
		return 0, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to count %s: %v", t.name, err)
	}
	return count, nil
}

func (t *table[T]) Insert(ctx context.Context, rows ...*T) error {
	ctx, span := tracing.StartSpan(ctx, fmt.Sprintf("postgres.%s.Insert", t.name))
	defer span.End()

	for _, chunk := range store.Chunk(rows, insertChunkSize) {
		values := make([]any, len(chunk))
		for i, row := range chunk {
			values[i] = row
		}
		ib := t.st.InsertInto(t.name, values...)
		if len(t.conflictKey) > 0 {
			ib.OnConflictDoNothing(t.conflictKey...)
		}
		query, args := ib.Build()
		if _, err := t.db.Executor(ctx).ExecContext(ctx, query, args...); err != nil {
			t.logger.WithContext(ctx).WithError(err).WithField("rows", len(chunk)).Errorf("failed to insert %s", t.name)
			return httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to insert %s: %v", t.name, err)
		}
	}
	return nil
}

func (t *table[T]) Update(ctx context.Context, rows ...*T) error {
	ctx, span := tracing.StartSpan(ctx, fmt.Sprintf("postgres.%s.Update", t.name))
	defer span.End()

	for _, row := range rows {
		id := t.id(row)
		ub := t.st.Update(t.name, row)
		ub.Where(ub.Equal("id", id))
		query, args := ub.Build()

		result, err := t.db.Executor(ctx).ExecContext(ctx, query, args...)
		if err != nil {
			t.logger.WithContext(ctx).WithError(err).WithField("id", id).Errorf("failed to update %s", t.name)
			return httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to update %s: %v", t.name, err)
		}
		if affected, err := result.RowsAffected(); err == nil && affected == 0 {
			return store.NotFound(t.name, id)
		}
	}
	return nil
}

func (t *table[T]) Delete(ctx context.Context, q store.Query) (int, error) {
	ctx, span := tracing.StartSpan(ctx, fmt.Sprintf("postgres.%s.Delete", t.name))
	defer span.End()

	del := t.st.DeleteFrom(t.name)
	if exprs := where(del, q.Conditions); len(exprs) > 0 {
		del.Where(exprs...)
	}
	query, args := del.Build()

	result, err := t.db.Executor(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		t.logger.WithContext(ctx).WithError(err).Errorf("failed to delete %s", t.name)
		return 0, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to delete %s: %v", t.name, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to delete %s: %v", t.name, err)
	}
	return int(affected), nil
}

// id reads the ID field every model carries.
func (t *table[T]) id(row *T) string {
	return reflect.ValueOf(row).Elem().FieldByName("ID").String()
}

// condBuilder is the expression half shared by every sqlbuilder statement.
type condBuilder interface {
	Equal(field string, value interface{}) string
	NotEqual(field string, value interface{}) string
	GreaterThan(field string, value interface{}) string
	LessThan(field string, value interface{}) string
	In(field string, values ...interface{}) string
	IsNull(field string) string
	IsNotNull(field string) string
}

func where(cb condBuilder, conditions []store.Condition) []string {
	exprs := make([]string, 0, len(conditions))
	for _, cond := range conditions {
		switch cond.Op {
		case store.OpEq:
			exprs = append(exprs, cb.Equal(cond.Column, cond.Value))
		case store.OpNe:
			exprs = append(exprs, cb.NotEqual(cond.Column, cond.Value))
		case store.OpGt:
			exprs = append(exprs, cb.GreaterThan(cond.Column, cond.Value))
		case store.OpLt:
			exprs = append(exprs, cb.LessThan(cond.Column, cond.Value))
		case store.OpIsNull:
			exprs = append(exprs, cb.IsNull(cond.Column))
		case store.OpNotNull:
			exprs = append(exprs, cb.IsNotNull(cond.Column))
		case store.OpIn:
			if len(cond.Values) == 0 {
				exprs = append(exprs, "1 = 0")
				continue
			}
			exprs = append(exprs, cb.In(cond.Column, cond.Values...))
		}
	}
	return exprs
}
