package db

import (
	"fmt"
	"strings"

	"emall/models"
)

// Владелец снятой с выбора закупки
const DefaultOwner = "未分配"

// Поля, по которым разрешена сортировка списка, и выражение ORDER BY.
// Бюджет и даты сортируются по нормализованным колонкам, а не по исходному тексту.
var orderable = map[string]string{
	"id":                  "p.id",
	"project_title":       "p.project_title",
	"project_number":      "p.project_number",
	"purchasing_unit":     "p.purchasing_unit",
	"total_price_control": "p.total_price_num",
	"publish_date":        "p.publish_at",
	"quote_start_time":    "p.quote_start_at",
	"quote_end_time":      "p.quote_end_at",
	"region":              "p.region",
}

// Поля, по которым ищет общий search
var searchable = []string{"project_title", "purchasing_unit", "project_number"}

type OrderField struct {
	Column string
	Desc   bool
}

var defaultOrdering = []OrderField{{Column: "publish_date", Desc: true}}

// ParseOrdering разбирает "-publish_date,project_title". Неизвестные поля пропускаются,
// пустой результат заменяется сортировкой по умолчанию.
func ParseOrdering(s string) []OrderField {
	var out []OrderField
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		desc := strings.HasPrefix(part, "-")
		part = strings.TrimPrefix(part, "-")
		if _, ok := orderable[part]; !ok {
			continue
		}
		out = append(out, OrderField{Column: part, Desc: desc})
	}
	if len(out) == 0 {
		return defaultOrdering
	}
	return out
}

type ListQuery struct {
	Offset       int
	Limit        int // 0 = без ограничения
	Search       string
	Filters      map[string]string
	Ordering     []OrderField
	SelectedOnly bool
	PriceSearch  *models.PriceSearch
}

type ListResult struct {
	Rows     []models.Procurement
	Total    int
	Filtered int
}

type Selection struct {
	IsSelected   bool
	ProjectOwner string
}

func (q ListQuery) where() (string, []any) {
	var (
		conds []string
		args  []any
	)
	like := func(v string) string {
		args = append(args, "%"+escapeLike(v)+"%")
		return fmt.Sprintf("$%d", len(args))
	}

	if s := strings.TrimSpace(q.Search); s != "" {
		p := like(s)
		ors := make([]string, len(searchable))
		for i, col := range searchable {
			ors[i] = fmt.Sprintf("p.%s ILIKE %s", col, p)
		}
		conds = append(conds, "("+strings.Join(ors, " OR ")+")")
	}
	for _, key := range models.FilterKeys {
		if v := strings.TrimSpace(q.Filters[key]); v != "" {
			conds = append(conds, fmt.Sprintf("p.%s ILIKE %s", key, like(v)))
		}
	}
	if ps := q.PriceSearch; ps != nil && ps.Validate() == nil {
		arg := func(v float64) string {
			args = append(args, v)
			return fmt.Sprintf("$%d", len(args))
		}
		switch ps.Operator {
		case models.PriceEQ:
			conds = append(conds, fmt.Sprintf("ABS(p.total_price_num - %s) < 0.01", arg(ps.Value)))
		case models.PriceRange:
			conds = append(conds, fmt.Sprintf("p.total_price_num BETWEEN %s AND %s", arg(ps.Min), arg(ps.Max)))
		default:
			conds = append(conds, fmt.Sprintf("p.total_price_num %s %s", ps.Operator, arg(ps.Value)))
		}
	}
	if q.SelectedOnly {
		conds = append(conds, "pp.is_selected = TRUE")
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (q ListQuery) orderBy() string {
	fields := q.Ordering
	if len(fields) == 0 {
		fields = defaultOrdering
	}
	parts := make([]string, 0, len(fields)+1)
	for _, f := range fields {
		expr, ok := orderable[f.Column]
		if !ok {
			continue
		}
		dir := "ASC"
		if f.Desc {
			dir = "DESC"
		}
		parts = append(parts, fmt.Sprintf("%s %s NULLS LAST", expr, dir))
	}
	// стабильный порядок страниц
	parts = append(parts, "p.id DESC")
	return " ORDER BY " + strings.Join(parts, ", ")
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
