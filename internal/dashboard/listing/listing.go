// Package listing управляет таблицей закупок: состояние фильтров и сортировки,
// запрос страницы и постобработка строк.
package listing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"emall/internal/dashboard/columns"
	"emall/internal/dashboard/notify"
	"emall/internal/format"
	"emall/internal/logger"
	"emall/models"

	"go.uber.org/zap"
)

const (
	DefaultPageSize = 25
	ExpiredTooltip  = "该项目报价已截止"
	LoadErrorText   = "加载数据时发生错误"
)

var (
	ErrStale       = errors.New("listing: stale response discarded")
	ErrNoHandler   = errors.New("listing: no handler bound for action")
	ErrUnavailable = errors.New("listing: action not available for row")
	ErrUnknownRow  = errors.New("listing: row is not on the current page")
)

type Backend interface {
	ListProcurements(ctx context.Context, req models.ListRequest) (*models.ListResponse, error)
}

// Row: строка таблицы после постобработки.
type Row struct {
	Procurement models.Procurement
	Cells       []columns.Cell
	Expired     bool
	Tooltip     string
	Actions     []columns.Action
	// Pending: запрос выбора в процессе, чекбокс заблокирован
	Pending bool
}

func (r Row) Selected() bool { return r.Procurement.IsSelected }

func (r Row) Has(a columns.Action) bool {
	for _, v := range r.Actions {
		if v == a {
			return true
		}
	}
	return false
}

type Page struct {
	Draw     int
	Total    int
	Filtered int
	Rows     []Row
}

// State: то, что пользователь выставил в интерфейсе таблицы.
type State struct {
	PageStart        int
	PageSize         int
	Order            []columns.Order
	Search           string
	Filters          map[string]string
	ShowSelectedOnly bool
	PriceSearch      *models.PriceSearch
}

// ActionFunc обрабатывает кнопку строки (детали, ход закупки).
type ActionFunc func(ctx context.Context, id int) error

type Controller struct {
	backend  Backend
	cols     []columns.Column
	notifier notify.Notifier
	log      *zap.Logger
	now      func() time.Time

	mu       sync.Mutex
	state    State
	draw     int
	page     Page
	handlers map[columns.Action]ActionFunc
}

type Option func(*Controller)

func WithNotifier(n notify.Notifier) Option { return func(c *Controller) { c.notifier = n } }
func WithLogger(l *zap.Logger) Option       { return func(c *Controller) { c.log = l } }
func WithClock(now func() time.Time) Option { return func(c *Controller) { c.now = now } }

func New(backend Backend, opts ...Option) *Controller {
	c := &Controller{
		backend: backend,
		cols:    columns.Default,
		now:     time.Now,
		state: State{
			PageSize: DefaultPageSize,
			Order:    append([]columns.Order(nil), columns.DefaultOrder...),
			Filters:  map[string]string{},
		},
		handlers: map[columns.Action]ActionFunc{},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.notifier = notify.OrNop(c.notifier)
	c.log = logger.OrNop(c.log)
	return c
}

func (c *Controller) Columns() []columns.Column { return c.cols }

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.state
	s.Order = append([]columns.Order(nil), c.state.Order...)
	s.Filters = make(map[string]string, len(c.state.Filters))
	for k, v := range c.state.Filters {
		s.Filters[k] = v
	}
	if ps := c.state.PriceSearch; ps != nil {
		cp := *ps
		s.PriceSearch = &cp
	}
	return s
}

// SetPage задаёт смещение и размер страницы. size <= 0 оставляет прежний размер.
func (c *Controller) SetPage(start, size int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if start < 0 {
		start = 0
	}
	c.state.PageStart = start
	if size > 0 {
		c.state.PageSize = size
	}
}

func (c *Controller) SetOrder(orders ...columns.Order) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Order = append([]columns.Order(nil), orders...)
}

// SetSearch меняет общий поиск и возвращает на первую страницу.
func (c *Controller) SetSearch(term string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Search = strings.TrimSpace(term)
	c.state.PageStart = 0
}

// SetFilter задаёт значение одного поля фильтра; пустое значение удаляет фильтр.
func (c *Controller) SetFilter(key, value string) error {
	known := false
	for _, k := range models.FilterKeys {
		if k == key {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("unknown filter %q", key)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if v := strings.TrimSpace(value); v != "" {
		c.state.Filters[key] = v
	} else {
		delete(c.state.Filters, key)
	}
	c.state.PageStart = 0
	return nil
}

// ResetFilters очищает фильтры и поиск.
func (c *Controller) ResetFilters() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Filters = map[string]string{}
	c.state.Search = ""
	c.state.PriceSearch = nil
	c.state.PageStart = 0
}

// SetPriceSearch задаёт числовой поиск по бюджету, nil снимает его.
func (c *Controller) SetPriceSearch(ps *models.PriceSearch) error {
	if ps != nil {
		if err := ps.Validate(); err != nil {
			return err
		}
		cp := *ps
		ps = &cp
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.PriceSearch = ps
	c.state.PageStart = 0
	return nil
}

func (c *Controller) SetShowSelectedOnly(on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.ShowSelectedOnly = on
	c.state.PageStart = 0
}

func (c *Controller) ShowSelectedOnly() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.ShowSelectedOnly
}

// Descriptor строит запрос страницы из текущего состояния, draw не выдаётся.
func (c *Controller) Descriptor() models.ListRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.descriptor()
}

func (c *Controller) descriptor() models.ListRequest {
	filters := make(map[string]string, len(c.state.Filters))
	for k, v := range c.state.Filters {
		filters[k] = v
	}
	var ps *models.PriceSearch
	if c.state.PriceSearch != nil {
		cp := *c.state.PriceSearch
		ps = &cp
	}
	return models.ListRequest{
		Draw:             c.draw,
		PageStart:        c.state.PageStart,
		PageSize:         c.state.PageSize,
		SearchTerm:       c.state.Search,
		Ordering:         columns.Ordering(c.cols, c.state.Order),
		Filters:          filters,
		ShowSelectedOnly: c.state.ShowSelectedOnly,
		PriceSearch:      ps,
	}
}

// Load запрашивает страницу. Ответ на устаревший запрос отбрасывается с ErrStale.
// При ошибке транспорта или сервера прежняя страница остаётся на месте.
func (c *Controller) Load(ctx context.Context) (Page, error) {
	c.mu.Lock()
	c.draw++
	req := c.descriptor()
	c.mu.Unlock()

	resp, err := c.backend.ListProcurements(ctx, req)

	c.mu.Lock()
	defer c.mu.Unlock()

	if req.Draw != c.draw {
		c.log.Debug("discarding stale list response", zap.Int("draw", req.Draw), zap.Int("current", c.draw))
		return c.page.clone(), ErrStale
	}

	if err != nil {
		c.log.Error("list request failed", zap.Int("draw", req.Draw), zap.Error(err))
		c.notifier.Notify(notify.Error, LoadErrorText)
		return c.page.clone(), fmt.Errorf("load procurements: %w", err)
	}

	if resp == nil || resp.Error != "" || resp.Data == nil {
		msg := "empty response"
		if resp != nil && resp.Error != "" {
			msg = resp.Error
		}
		c.log.Warn("list response carries no rows", zap.Int("draw", req.Draw), zap.String("error", msg))
		c.page = Page{Draw: req.Draw, Rows: []Row{}}
		if resp != nil {
			c.page.Total = resp.RecordsTotal
		}
		return c.page.clone(), nil
	}

	filtered := resp.RecordsTotal
	if resp.RecordsFiltered != nil {
		filtered = *resp.RecordsFiltered
	}

	now := c.now()
	rows := make([]Row, len(resp.Data))
	for i, p := range resp.Data {
		rows[i] = c.buildRow(p, now)
	}
	c.page = Page{Draw: req.Draw, Total: resp.RecordsTotal, Filtered: filtered, Rows: rows}
	return c.page.clone(), nil
}

func (c *Controller) buildRow(p models.Procurement, now time.Time) Row {
	r := Row{
		Procurement: p,
		Cells:       columns.Row(c.cols, p),
		Actions:     columns.Actions(p.IsSelected),
	}
	if format.IsBefore(p.QuoteEndTime, now) {
		r.Expired = true
		r.Tooltip = ExpiredTooltip
	}
	return r
}

// Page возвращает копию последней отрисованной страницы.
func (c *Controller) Page() Page {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.page.clone()
}

func (c *Controller) Row(id int) (Row, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i := c.index(id); i >= 0 {
		return c.page.Rows[i].clone(), true
	}
	return Row{}, false
}

// SetRowSelected перерисовывает одну строку без перезагрузки страницы:
// стиль, чекбокс и кнопка хода закупки.
func (c *Controller) SetRowSelected(id int, selected bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.index(id)
	if i < 0 {
		return false
	}
	old := c.page.Rows[i]
	p := old.Procurement
	p.IsSelected = selected
	row := c.buildRow(p, c.now())
	row.Pending = old.Pending
	c.page.Rows[i] = row
	return true
}

// SetRowPending блокирует или разблокирует чекбокс строки.
// Возвращает false, если строка уже в этом состоянии или её нет.
func (c *Controller) SetRowPending(id int, pending bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.index(id)
	if i < 0 || c.page.Rows[i].Pending == pending {
		return false
	}
	c.page.Rows[i].Pending = pending
	return true
}

// SelectedCount: число выбранных строк на текущей странице.
func (c *Controller) SelectedCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, r := range c.page.Rows {
		if r.Procurement.IsSelected {
			n++
		}
	}
	return n
}

// Bind регистрирует обработчик действия. Повторный Bind заменяет прежний, а не добавляет второй.
func (c *Controller) Bind(action columns.Action, fn ActionFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if fn == nil {
		delete(c.handlers, action)
		return
	}
	c.handlers[action] = fn
}

// Trigger вызывает обработчик, если действие доступно для строки.
func (c *Controller) Trigger(ctx context.Context, action columns.Action, id int) error {
	c.mu.Lock()
	fn := c.handlers[action]
	i := c.index(id)
	var available bool
	if i >= 0 {
		available = c.page.Rows[i].Has(action)
	}
	c.mu.Unlock()

	switch {
	case i < 0:
		return ErrUnknownRow
	case !available:
		return ErrUnavailable
	case fn == nil:
		return ErrNoHandler
	}
	return fn(ctx, id)
}

func (c *Controller) index(id int) int {
	for i, r := range c.page.Rows {
		if r.Procurement.ID == id {
			return i
		}
	}
	return -1
}

func (p Page) clone() Page {
	out := p
	out.Rows = make([]Row, len(p.Rows))
	for i, r := range p.Rows {
		out.Rows[i] = r.clone()
	}
	return out
}

func (r Row) clone() Row {
	out := r
	out.Cells = append([]columns.Cell(nil), r.Cells...)
	out.Actions = append([]columns.Action(nil), r.Actions...)
	return out
}
