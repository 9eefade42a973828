package response

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewPagination(t *testing.T) {
	tests := []struct {
		name  string
		page  int
		limit int
		total int64
		pages int
	}{
		{name: "exact pages", page: 1, limit: 10, total: 30, pages: 3},
		{name: "partial last page", page: 2, limit: 10, total: 31, pages: 4},
		{name: "empty", page: 1, limit: 10, total: 0, pages: 0},
		{name: "no limit", page: 1, limit: 0, total: 5, pages: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPagination(tt.page, tt.limit, tt.total)
			assert.Equal(t, Pagination{Page: tt.page, Limit: tt.limit, Total: tt.total, TotalPages: tt.pages}, p)
		})
	}
}
