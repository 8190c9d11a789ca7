package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProcess_Validate(t *testing.T) {
	testCases := []struct {
		name     string
		process  *Process
		expected int
	}{
		{
			name: "valid sequential process",
			process: &Process{
				ID:         "expense",
				Sequential: true,
				Levels:     []*Level{{ID: "manager"}, {ID: "finance"}},
			},
			expected: 0,
		},
		{
			name:     "missing id and levels",
			process:  &Process{},
			expected: 2,
		},
		{
			name: "duplicate level id",
			process: &Process{
				ID:     "expense",
				Levels: []*Level{{ID: "manager"}, {ID: "manager"}},
			},
			expected: 1,
		},
		{
			name: "level without id",
			process: &Process{
				ID:     "expense",
				Levels: []*Level{{ID: "manager"}, {}},
			},
			expected: 1,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			issues := tc.process.Validate()
			assert.Len(t, issues, tc.expected)
		})
	}
}

func TestProcess_Navigation(t *testing.T) {
	process := &Process{
		ID:         "expense",
		Sequential: true,
		Levels:     []*Level{{ID: "manager"}, {ID: "finance"}, {ID: "director"}},
	}

	assert.Equal(t, "manager", process.First().ID)
	assert.Equal(t, "finance", process.Next("manager").ID)
	assert.Equal(t, "director", process.Next("finance").ID)
	assert.Nil(t, process.Next("director"))
	assert.Nil(t, process.Next("unknown"))
	assert.Equal(t, []string{"manager", "finance", "director"}, process.LevelIDs())

	assert.NotNil(t, process.Level("finance"))
	assert.Nil(t, process.Level("unknown"))

	empty := &Process{ID: "empty"}
	assert.Nil(t, empty.First())
}
