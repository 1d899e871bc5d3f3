// Package columns описывает колонки таблицы закупок: заголовок, сортировку и отрисовку ячейки.
package columns

import (
	"strconv"
	"strings"

	"emall/internal/format"
	"emall/models"
)

const titleLimit = 30

// Cell: отрисованная ячейка, независимая от технологии вывода.
type Cell struct {
	Text     string
	Title    string
	Href     string
	Checked  bool
	Emphasis bool
	Actions  []Action
}

type Action string

const (
	ActionDetail   Action = "detail"
	ActionProgress Action = "progress"
)

type Column struct {
	Name       string
	Title      string
	Orderable  bool
	Searchable bool
	Render     func(p models.Procurement) Cell
}

// Order: сортировка по индексу колонки, как её присылает таблица.
type Order struct {
	Column int
	Desc   bool
}

// Индексы колонок Default
const (
	ColSelect = iota
	ColProjectTitle
	ColProjectNumber
	ColPurchasingUnit
	ColTotalPriceControl
	ColPublishDate
	ColQuoteEndTime
	ColActions
)

// Default: колонки основной таблицы.
var Default = []Column{
	{Name: "select", Title: "选择", Render: renderSelect},
	{Name: "project_title", Title: "项目标题", Orderable: true, Searchable: true, Render: renderTitle},
	{Name: "project_number", Title: "项目编号", Orderable: true, Searchable: true, Render: text(func(p models.Procurement) string { return p.ProjectNumber }, format.Placeholder)},
	{Name: "purchasing_unit", Title: "采购单位", Orderable: true, Searchable: true, Render: text(func(p models.Procurement) string { return p.PurchasingUnit }, "")},
	{Name: "total_price_control", Title: "预算控制金额", Orderable: true, Searchable: true, Render: renderPrice},
	{Name: "publish_date", Title: "发布日期", Orderable: true, Searchable: true, Render: text(func(p models.Procurement) string { return p.PublishDate }, "")},
	{Name: "quote_end_time", Title: "报价截止时间", Orderable: true, Searchable: true, Render: text(func(p models.Procurement) string { return p.QuoteEndTime }, "")},
	{Name: "actions", Title: "操作", Render: renderActions},
}

// DefaultOrder: по дате публикации, новые сверху.
var DefaultOrder = []Order{{Column: ColPublishDate, Desc: true}}

// Ordering переводит сортировку таблицы в параметр ordering: "-publish_date,project_title".
// Неупорядочиваемые колонки и индексы вне диапазона пропускаются.
func Ordering(cols []Column, orders []Order) string {
	parts := make([]string, 0, len(orders))
	for _, o := range orders {
		if o.Column < 0 || o.Column >= len(cols) {
			continue
		}
		col := cols[o.Column]
		if !col.Orderable || col.Name == "" {
			continue
		}
		if o.Desc {
			parts = append(parts, "-"+col.Name)
		} else {
			parts = append(parts, col.Name)
		}
	}
	return strings.Join(parts, ",")
}

// Row отрисовывает все колонки для одной записи.
func Row(cols []Column, p models.Procurement) []Cell {
	out := make([]Cell, len(cols))
	for i, c := range cols {
		out[i] = c.Render(p)
	}
	return out
}

// Actions возвращает действия строки. Детали всегда, ход закупки только для выбранных.
func Actions(selected bool) []Action {
	if selected {
		return []Action{ActionDetail, ActionProgress}
	}
	return []Action{ActionDetail}
}

// Truncate обрезает строку до n символов с многоточием.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func renderSelect(p models.Procurement) Cell {
	return Cell{Text: strconv.Itoa(p.ID), Checked: p.IsSelected}
}

func renderTitle(p models.Procurement) Cell {
	href := p.URL
	if href == "" {
		href = "#"
	}
	return Cell{
		Text:     Truncate(p.ProjectTitle, titleLimit),
		Title:    p.ProjectTitle,
		Href:     href,
		Emphasis: p.IsSelected,
	}
}

func renderPrice(p models.Procurement) Cell {
	if p.TotalPriceControl == "" {
		return Cell{Emphasis: p.IsSelected}
	}
	return Cell{
		Text:     format.DisplayPrice(p.TotalPriceControl),
		Title:    p.TotalPriceControl,
		Emphasis: p.IsSelected,
	}
}

func renderActions(p models.Procurement) Cell {
	return Cell{Actions: Actions(p.IsSelected)}
}

func text(get func(models.Procurement) string, empty string) func(models.Procurement) Cell {
	return func(p models.Procurement) Cell {
		v := get(p)
		if v == "" {
			v = empty
		}
		return Cell{Text: v, Emphasis: p.IsSelected}
	}
}
