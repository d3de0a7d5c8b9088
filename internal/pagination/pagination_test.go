package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWindow(t *testing.T) {
	tests := []struct {
		name       string
		total      int64
		perPage    int
		requested  int
		wantNumber int
		wantPages  int
		wantOffset int
	}{
		{"first page", 20, 10, 1, 1, 2, 0},
		{"second page", 20, 10, 2, 2, 2, 10},
		{"beyond last clamps", 21, 10, 99, 3, 3, 20},
		{"zero clamps to first", 5, 10, 0, 1, 1, 0},
		{"empty result has one page", 0, 10, 3, 1, 1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, pages, off := Window(tt.total, tt.perPage, tt.requested)
			assert.Equal(t, tt.wantNumber, n)
			assert.Equal(t, tt.wantPages, pages)
			assert.Equal(t, tt.wantOffset, off)
		})
	}
}

func TestParsePage(t *testing.T) {
	assert.Equal(t, 1, ParsePage(""))
	assert.Equal(t, 1, ParsePage("abc"))
	assert.Equal(t, 1, ParsePage("-4"))
	assert.Equal(t, 7, ParsePage("7"))

	n, pages, _ := Window(30, 10, ParsePage("last"))
	assert.Equal(t, 3, n)
	assert.Equal(t, 3, pages)
}

func TestPageNavigation(t *testing.T) {
	p := &Page[int]{Number: 2, NumPages: 3}
	assert.True(t, p.HasNext())
	assert.True(t, p.HasPrevious())
	assert.True(t, p.HasOtherPages())
	assert.Equal(t, 3, p.NextPageNumber())
	assert.Equal(t, 1, p.PreviousPageNumber())
	assert.Equal(t, []int{1, 2, 3}, p.PageRange())

	single := &Page[int]{Number: 1, NumPages: 1}
	assert.False(t, single.HasOtherPages())
}
