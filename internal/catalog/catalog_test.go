package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeProblem(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0644))
}

func TestLoad_ValidCatalog(t *testing.T) {
	dir := t.TempDir()
	writeProblem(t, dir, "two-sum.json", `{
		"id": "two-sum",
		"title": "Two Sum",
		"difficulty": "Easy",
		"tags": ["array", "hash-map"],
		"function_name": "twoSum",
		"test_cases": [
			{"input": {"nums": [2,7,11,15], "target": 9}, "expected": [0,1], "function_call": "twoSum(nums=nums, target=target)"}
		],
		"hidden_test_cases": []
	}`)

	c, err := Load(dir)
	require.NoError(t, err)

	p, err := c.Get("two-sum")
	require.NoError(t, err)
	assert.Equal(t, "Two Sum", p.Title)

	summaries := c.List()
	require.Len(t, summaries, 1)
	assert.Equal(t, "two-sum", summaries[0].ID)
}

func TestLoad_RejectsInjection(t *testing.T) {
	dir := t.TempDir()
	writeProblem(t, dir, "evil.json", `{
		"id": "evil",
		"title": "Evil",
		"function_name": "twoSum",
		"test_cases": [
			{"input": {}, "expected": null, "function_call": "__import__('os').system('touch /tmp/x')"}
		]
	}`)

	_, err := Load(dir)
	require.Error(t, err)
	var catErr *Error
	require.ErrorAs(t, err, &catErr)
	assert.Equal(t, "evil", catErr.ProblemID)
}

func TestValidateFunctionCall(t *testing.T) {
	cases := []struct {
		name    string
		call    string
		wantErr bool
	}{
		{"plain call", "twoSum(nums=nums, target=target)", false},
		{"dunder attr", "twoSum.__class__(nums=nums)", true},
		{"import token", "twoSum(x=__import__('os'))", true},
		{"not a call", "twoSum", true},
		{"allowed attr", "twoSum(helper=helpers.buildTree(vals=vals))", false},
		{"disallowed attr", "twoSum(helper=os.system(x))", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateFunctionCall(tc.call)
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRandom_FiltersByDifficultyAndTag(t *testing.T) {
	dir := t.TempDir()
	writeProblem(t, dir, "a.json", `{"id":"a","title":"A","difficulty":"Easy","tags":["array"],"function_name":"f","test_cases":[{"input":{},"expected":1,"function_call":"f()"}]}`)
	writeProblem(t, dir, "b.json", `{"id":"b","title":"B","difficulty":"Hard","tags":["graph"],"function_name":"f","test_cases":[{"input":{},"expected":1,"function_call":"f()"}]}`)

	c, err := Load(dir)
	require.NoError(t, err)

	p, err := c.Random("Easy", "")
	require.NoError(t, err)
	assert.Equal(t, "a", p.ID)

	_, err = c.Random("Medium", "")
	assert.ErrorIs(t, err, ErrNotFound)
}
