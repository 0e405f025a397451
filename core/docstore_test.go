package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyMutations(t *testing.T) {
	type result struct {
		Score  int  `json:"score"`
		Passed bool `json:"passed"`
	}

	tests := []struct {
		name      string
		doc       Document
		mutations []Mutation
		want      Document
		wantErr   bool
	}{
		{
			name:      "set top level",
			doc:       Document{"id": "e1", "certificateIssued": false},
			mutations: []Mutation{SetField("certificateIssued", true)},
			want:      Document{"id": "e1", "certificateIssued": true},
		},
		{
			name:      "set nested creates parents",
			doc:       Document{"id": "e1"},
			mutations: []Mutation{SetField("quizResults.l1", result{Score: 3, Passed: true})},
			want: Document{"id": "e1", "quizResults": map[string]interface{}{
				"l1": map[string]interface{}{"score": float64(3), "passed": true},
			}},
		},
		{
			name:      "union skips present values",
			doc:       Document{"id": "e1", "completedLessons": []interface{}{"l1"}},
			mutations: []Mutation{UnionField("completedLessons", "l1", "l2", "l2")},
			want:      Document{"id": "e1", "completedLessons": []interface{}{"l1", "l2"}},
		},
		{
			name:      "union on missing field",
			doc:       Document{"id": "e1"},
			mutations: []Mutation{UnionField("completedLessons", "l1")},
			want:      Document{"id": "e1", "completedLessons": []interface{}{"l1"}},
		},
		{
			name: "set and union together",
			doc:  Document{"id": "e1", "completedLessons": []interface{}{}},
			mutations: []Mutation{
				SetField("quizResults.q1", result{Score: 1, Passed: true}),
				UnionField("completedLessons", "q1"),
			},
			want: Document{
				"id":               "e1",
				"completedLessons": []interface{}{"q1"},
				"quizResults": map[string]interface{}{
					"q1": map[string]interface{}{"score": float64(1), "passed": true},
				},
			},
		},
		{
			name:      "union on non array",
			doc:       Document{"id": "e1", "completedLessons": "l1"},
			mutations: []Mutation{UnionField("completedLessons", "l2")},
			wantErr:   true,
		},
		{
			name:      "id is immutable",
			doc:       Document{"id": "e1"},
			mutations: []Mutation{SetField("id", "e2")},
			wantErr:   true,
		},
		{
			name:      "path through scalar",
			doc:       Document{"id": "e1", "quizResults": "oops"},
			mutations: []Mutation{SetField("quizResults.l1", 1)},
			wantErr:   true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ApplyMutations(tt.doc, tt.mutations...)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, tt.doc)
		})
	}
}

func TestMatchFilters(t *testing.T) {
	doc := Document{
		"id":       "e1",
		"userId":   "u1",
		"courseId": "c1",
		"price":    float64(450),
		"active":   true,
		"meta":     map[string]interface{}{"source": "payfast"},
	}

	tests := []struct {
		name    string
		filters []Filter
		want    bool
	}{
		{name: "no filters", want: true},
		{name: "single match", filters: []Filter{Where("userId", "u1")}, want: true},
		{name: "composite match", filters: []Filter{Where("userId", "u1"), Where("courseId", "c1")}, want: true},
		{name: "composite miss", filters: []Filter{Where("userId", "u1"), Where("courseId", "c2")}},
		{name: "number", filters: []Filter{Where("price", 450)}, want: true},
		{name: "bool", filters: []Filter{Where("active", true)}, want: true},
		{name: "nested", filters: []Filter{Where("meta.source", "payfast")}, want: true},
		{name: "missing field", filters: []Filter{Where("status", "Published")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MatchFilters(doc, tt.filters...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCloneDocument(t *testing.T) {
	orig := Document{"id": "c1", "modules": []interface{}{map[string]interface{}{"id": "m1"}}}
	clone, err := CloneDocument(orig)
	require.NoError(t, err)

	clone["modules"].([]interface{})[0].(map[string]interface{})["id"] = "changed"
	assert.Equal(t, "m1", orig["modules"].([]interface{})[0].(map[string]interface{})["id"])
}
