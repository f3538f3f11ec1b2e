package store

import (
	"errors"
	"net/http"
	"testing"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/stretchr/testify/assert"
)

func TestChunk(t *testing.T) {
	chunks := Chunk([]int{1, 2, 3, 4, 5}, 2)
	assert.Equal(t, [][]int{{1, 2}, {3, 4}, {5}}, chunks)
	assert.Nil(t, Chunk([]int{}, 2))
	assert.Equal(t, [][]int{{1, 2}}, Chunk([]int{1, 2}, 0))
}

func TestUnique(t *testing.T) {
	assert.Equal(t, []string{"b", "a"}, Unique([]string{"b", "", "a", "b"}))
}

func TestIn(t *testing.T) {
	cond := In("id", []string{"a", "b"})
	assert.Equal(t, OpIn, cond.Op)
	assert.Equal(t, []any{"a", "b"}, cond.Values)
	assert.Empty(t, In("id", []string(nil)).Values)
}

func TestQueryBuilders(t *testing.T) {
	q := RepresentationOf("hh-1", "program-a")
	assert.Equal(t, []Condition{
		{Column: "is_original", Op: OpEq, Value: false},
		{Column: "copied_from_id", Op: OpEq, Value: "hh-1"},
		{Column: "program_id", Op: OpEq, Value: "program-a"},
	}, q.Conditions)

	extended := q.And(NotRemoved())
	assert.Len(t, q.Conditions, 3)
	assert.Len(t, extended.Conditions, 4)
	assert.Equal(t, []string{"created_at", "id"}, RepresentationsOf("hh-1").Order)
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, IsNotFound(NotFound(TableHouseholds, "hh-1")))
	assert.False(t, IsNotFound(httperror.NewHTTPError(http.StatusConflict, "conflict")))
	assert.False(t, IsNotFound(errors.New("plain")))
	assert.False(t, IsNotFound(nil))
}
