package citation

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenumberOrdersByFirstAppearance(t *testing.T) {
	in := []Citation{
		{RefIndex: 5, Offset: 30, TextSnippet: "late"},
		{RefIndex: 5, Offset: 10, TextSnippet: "early"},
		{RefIndex: 9, Offset: 20},
	}

	out := Renumber(in)

	require.Len(t, out, 3)
	assert.Equal(t, 1, out[0].RefIndex)
	assert.Equal(t, 1, out[1].RefIndex)
	assert.Equal(t, 2, out[2].RefIndex)
	assert.Equal(t, "late", out[0].TextSnippet, "occurrences keep their own payload")
	assert.Equal(t, "early", out[1].TextSnippet)
	assert.Equal(t, 5, in[0].RefIndex, "input must not be mutated")
}

func TestRenumberIsIdempotent(t *testing.T) {
	lists := [][]Citation{
		nil,
		{{RefIndex: 3, Offset: 0}},
		{{RefIndex: 5, Offset: 30}, {RefIndex: 5, Offset: 10}, {RefIndex: 9, Offset: 20}},
		{{RefIndex: 2, Offset: 40}, {RefIndex: 7, Offset: 40}, {RefIndex: 1, Offset: 5}, {RefIndex: 7, Offset: 90}},
		{{RefIndex: 4, Offset: 12, BoundingBoxes: []NormalizedBox{{X: 0.1, Y: 0.2, W: 0.3, H: 0.01}}}, {RefIndex: 8, Offset: 3}},
	}
	for _, list := range lists {
		once := Renumber(list)
		assert.Equal(t, once, Renumber(once))
	}
}

func TestRenumberDenseSequence(t *testing.T) {
	in := []Citation{
		{RefIndex: 12, Offset: 50},
		{RefIndex: 4, Offset: 5},
		{RefIndex: 30, Offset: 25},
		{RefIndex: 4, Offset: 70},
	}
	out := Renumber(in)
	got := make([]int, len(out))
	for i, c := range out {
		got[i] = c.RefIndex
	}
	assert.Equal(t, []int{3, 1, 2, 1}, got)
}

func TestRemapKeepsUnknownIndices(t *testing.T) {
	out := remap([]Citation{{RefIndex: 6}, {RefIndex: 2}}, map[int]int{2: 1})
	assert.Equal(t, 6, out[0].RefIndex)
	assert.Equal(t, 1, out[1].RefIndex)
}

func TestUnique(t *testing.T) {
	out := Unique(Renumber([]Citation{
		{RefIndex: 5, Offset: 30, Page: 2},
		{RefIndex: 9, Offset: 20, Page: 4},
		{RefIndex: 5, Offset: 60, Page: 7},
	}))
	require.Len(t, out, 2)
	assert.Equal(t, 1, out[0].RefIndex)
	assert.Equal(t, 4, out[0].Page)
	assert.Equal(t, 2, out[1].RefIndex)
	assert.Equal(t, 2, out[1].Page)
}

func TestNormalizedBoxValid(t *testing.T) {
	cases := []struct {
		name string
		box  NormalizedBox
		want bool
	}{
		{name: "typical", box: NormalizedBox{X: 0.1, Y: 0.2, W: 0.5, H: 0.02}, want: true},
		{name: "zero height", box: NormalizedBox{X: 0.1, Y: 0.2, W: 0.5}, want: true},
		{name: "full page", box: NormalizedBox{X: 0, Y: 0, W: 1, H: 1}, want: true},
		{name: "zero width", box: NormalizedBox{X: 0.1, Y: 0.2, H: 0.1}, want: false},
		{name: "x out of range", box: NormalizedBox{X: 1.2, Y: 0.2, W: 0.1, H: 0.1}, want: false},
		{name: "negative y", box: NormalizedBox{X: 0.1, Y: -0.1, W: 0.1, H: 0.1}, want: false},
		{name: "nan", box: NormalizedBox{X: math.NaN(), Y: 0.2, W: 0.1, H: 0.1}, want: false},
		{name: "inf height", box: NormalizedBox{X: 0.1, Y: 0.2, W: 0.1, H: math.Inf(1)}, want: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.box.Valid())
		})
	}
}

func TestCitationDecodesWireFormat(t *testing.T) {
	payload := `{"ref_index":2,"chunk_id":"c-9","page":3,"bboxes":[{"x":0.1,"y":0.2,"w":0.3,"h":0},{"x":0.1,"y":0.5,"w":0.3,"h":0.02,"page":4}],"text_snippet":"net income","offset":17,"document_id":"doc-1"}`
	var c Citation
	require.NoError(t, json.Unmarshal([]byte(payload), &c))

	assert.Equal(t, 2, c.RefIndex)
	assert.Equal(t, "c-9", c.ChunkID)
	assert.Equal(t, "doc-1", c.DocumentID)
	boxes := c.Boxes()
	require.Len(t, boxes, 2)
	assert.Equal(t, 3, boxes[0].Page)
	assert.Equal(t, 4, boxes[1].Page)
	assert.Equal(t, 0, c.BoundingBoxes[0].Page, "Boxes must not mutate the citation")
}
