package tenancy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuery_SQL(t *testing.T) {
	tests := []struct {
		name     string
		query    *Query
		wantSQL  string
		wantArgs []interface{}
	}{
		{
			name:     "bare",
			query:    Select("SELECT id FROM courses"),
			wantSQL:  "SELECT id FROM courses",
			wantArgs: []interface{}{},
		},
		{
			name:     "conditions are renumbered",
			query:    Select("SELECT id FROM courses").Where("code = ?", "MAT101").Where("credits > ?", 2),
			wantSQL:  "SELECT id FROM courses WHERE (code = $1) AND (credits > $2)",
			wantArgs: []interface{}{"MAT101", 2},
		},
		{
			name:     "order and page",
			query:    Select("SELECT id FROM courses").Where("credits > ?", 2).OrderBy("code ASC").Page(10, 20),
			wantSQL:  "SELECT id FROM courses WHERE (credits > $1) ORDER BY code ASC LIMIT $2 OFFSET $3",
			wantArgs: []interface{}{2, 10, 20},
		},
		{
			name:     "multi-line disjunctions are grouped",
			query:    Select("SELECT id FROM courses").Where("code = ?\n\tOR title = ?", "MAT101", "Calculus"),
			wantSQL:  "SELECT id FROM courses WHERE (code = $1\n\tOR title = $2)",
			wantArgs: []interface{}{"MAT101", "Calculus"},
		},
		{
			name:     "disjunctions are grouped",
			query:    Select("SELECT id FROM students").Where("email = ? OR student_number = ?", "a@b.c", "2026-1"),
			wantSQL:  "SELECT id FROM students WHERE (email = $1 OR student_number = $2)",
			wantArgs: []interface{}{"a@b.c", "2026-1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args := tt.query.SQL()
			assert.Equal(t, tt.wantSQL, sql)
			assert.ElementsMatch(t, tt.wantArgs, args)
		})
	}
}

func TestQuery_ScopedKeepsOriginal(t *testing.T) {
	q := Select("SELECT id FROM courses").Where("code = ?", "MAT101")

	scoped := q.scoped("faculty_id = ?", "f-1")

	sql, args := scoped.SQL()
	assert.Equal(t, "SELECT id FROM courses WHERE faculty_id = $1 AND (code = $2)", sql)
	assert.Equal(t, []interface{}{"f-1", "MAT101"}, args)

	sql, args = q.SQL()
	assert.Equal(t, "SELECT id FROM courses WHERE (code = $1)", sql)
	assert.Equal(t, []interface{}{"MAT101"}, args)
}
