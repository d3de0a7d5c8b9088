// Package pagination 把有序结果切成固定大小的页
package pagination

import (
	"strconv"
	"strings"
)

// Page 一页结果；Number 从 1 开始
type Page[T any] struct {
	Items    []T
	Number   int
	NumPages int
	PerPage  int
	Total    int64
}

// Window 计算合法页码与偏移量：越界页码取最后一页，空结果也有一页
func Window(total int64, perPage, requested int) (number, numPages, offset int) {
	if perPage < 1 {
		perPage = 1
	}
	numPages = int((total + int64(perPage) - 1) / int64(perPage))
	if numPages < 1 {
		numPages = 1
	}
	number = requested
	if number < 1 {
		number = 1
	}
	if number > numPages {
		number = numPages
	}
	return number, numPages, (number - 1) * perPage
}

// ParsePage 解析 ?page=，非数字或小于 1 都视为第一页，"last" 表示最后一页
func ParsePage(raw string) int {
	raw = strings.TrimSpace(raw)
	if raw == "last" {
		return int(^uint(0) >> 1)
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 1
	}
	return n
}

func (p *Page[T]) HasNext() bool     { return p.Number < p.NumPages }
func (p *Page[T]) HasPrevious() bool { return p.Number > 1 }
func (p *Page[T]) HasOtherPages() bool {
	return p.HasNext() || p.HasPrevious()
}
func (p *Page[T]) NextPageNumber() int     { return p.Number + 1 }
func (p *Page[T]) PreviousPageNumber() int { return p.Number - 1 }

// PageRange 模板里用于渲染页码链接
func (p *Page[T]) PageRange() []int {
	r := make([]int, p.NumPages)
	for i := range r {
		r[i] = i + 1
	}
	return r
}
