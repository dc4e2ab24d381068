package flatten

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWalk_ScalarLeaves(t *testing.T) {
	rec := Record{"name": "alice", "age": 30}

	pairs := Walk(rec)

	require.Len(t, pairs, 2)
	assert.Equal(t, Pair{Path: "age", Value: 30}, pairs[0])
	assert.Equal(t, Pair{Path: "name", Value: "alice"}, pairs[1])
}

func TestWalk_NestedMappings(t *testing.T) {
	rec := Record{
		"contact": Record{
			"email": "a@b.com",
			"phone": Record{"mobile": "+1555"},
		},
	}

	pairs := Walk(rec)

	require.Len(t, pairs, 2)
	assert.Equal(t, "contact.email", pairs[0].Path)
	assert.Equal(t, "contact.phone.mobile", pairs[1].Path)
}

func TestWalk_SkipsReservedKeyAtEveryLevel(t *testing.T) {
	rec := Record{
		"_id":  "root-oid",
		"name": "x",
		"sub": Record{
			"_id": "nested-oid",
			"val": 1,
		},
	}

	pairs := Walk(rec)

	paths := make([]string, 0, len(pairs))
	for _, p := range pairs {
		paths = append(paths, p.Path)
	}
	assert.ElementsMatch(t, []string{"name", "sub.val"}, paths)
}

func TestWalk_ListOfMappingsRecursesUnderParentKey(t *testing.T) {
	rec := Record{
		"items": []any{
			Record{"sku": "A1"},
			Record{"sku": "A2"},
		},
	}

	pairs := Walk(rec)

	require.Len(t, pairs, 2)
	assert.Equal(t, "items.sku", pairs[0].Path)
	assert.Equal(t, "A1", pairs[0].Value)
	assert.Equal(t, "items.sku", pairs[1].Path)
	assert.Equal(t, "A2", pairs[1].Value)
}

func TestWalk_ScalarListElementsIgnored(t *testing.T) {
	rec := Record{"tags": []any{"red", "green"}}

	pairs := Walk(rec)

	assert.Empty(t, pairs)
}

func TestWalk_EachLeafAppearsExactlyOnce(t *testing.T) {
	rec := Record{
		"a": 1,
		"b": Record{"c": 2, "d": Record{"e": 3}},
	}

	pairs := Walk(rec)

	seen := make(map[string]int)
	for _, p := range pairs {
		seen[p.Path]++
	}
	for path, n := range seen {
		assert.Equal(t, 1, n, "path %s emitted %d times", path, n)
	}
	assert.Len(t, seen, 3)
}

func TestWalk_Deterministic(t *testing.T) {
	rec := Record{"z": 1, "a": 2, "m": Record{"y": 3, "b": 4}}

	first := Walk(rec)
	second := Walk(rec)

	assert.Equal(t, first, second)
}

func TestShortName(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"email", "email"},
		{"contact.email", "email"},
		{"a.b.c", "c"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ShortName(tt.path))
	}
}
