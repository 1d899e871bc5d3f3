// Package detail показывает карточку закупки только для чтения.
package detail

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"emall/internal/dashboard/api"
	"emall/internal/dashboard/modalstack"
	"emall/internal/dashboard/notify"
	"emall/internal/format"
	"emall/internal/logger"
	"emall/models"

	"go.uber.org/zap"
)

const (
	ModalID = "detailModal"

	LoadingTitle    = "加载中..."
	DefaultTitle    = "采购项目详情"
	LoadFailedText  = "加载失败"
	RenderErrorText = "渲染失败"
	loadFallback    = "无法加载项目详情，请稍后重试"
)

var ErrStale = errors.New("detail: response for a closed or replaced modal")

type Backend interface {
	GetProcurement(ctx context.Context, id int) (*models.ProcurementDetail, error)
}

type Status int

const (
	Closed Status = iota
	Loading
	Loaded
	Failed
)

type Field struct {
	Label string
	Value string
}

// Item: строка объединённой таблицы товаров, одна на индекс параллельных массивов.
type Item struct {
	Index       int
	Name        string
	Parameters  string
	Quantity    string
	Amount      string
	Brand       string
	Business    string
	DownloadURL string
}

type View struct {
	Status        Status
	ProcurementID int
	Title         string
	Basic         []Field
	Timeline      []Field
	Items         []Item
	SourceURL     string
	ErrorTitle    string
	ErrorMessage  string
}

func loadingView(id int) View {
	return View{Status: Loading, ProcurementID: id, Title: LoadingTitle}
}

func failedView(id int, title, msg string) View {
	return View{Status: Failed, ProcurementID: id, Title: "错误", ErrorTitle: title, ErrorMessage: msg}
}

// Render переводит карточку в модель представления. Любое поле может отсутствовать.
func Render(d *models.ProcurementDetail) (View, error) {
	if d == nil {
		return View{}, errors.New("render detail: empty record")
	}

	title := d.ProjectTitle
	if title == "" {
		title = DefaultTitle
	}
	src := d.URL
	if src == "" {
		src = "#"
	}

	v := View{
		Status:        Loaded,
		ProcurementID: d.ID,
		Title:         title,
		Basic: []Field{
			{Label: "采购单位", Value: orDash(d.PurchasingUnit)},
			{Label: "项目编号", Value: orDash(d.ProjectNumber)},
			{Label: "预算控制", Value: format.DisplayPrice(d.TotalPriceControl)},
			{Label: "地区", Value: orDash(d.Region)},
		},
		Timeline: []Field{
			{Label: "发布日期", Value: format.DisplayDate(d.PublishDate)},
			{Label: "报价开始", Value: format.DisplayDate(d.QuoteStartTime)},
			{Label: "报价截止", Value: format.DisplayDate(d.QuoteEndTime)},
		},
		Items:     Items(d),
		SourceURL: src,
	}
	return v, nil
}

// Items склеивает параллельные массивы в одну таблицу. Число строк равно длине
// самого длинного массива, недостающие ячейки заполняются "-".
func Items(d *models.ProcurementDetail) []Item {
	arrays := [][]string{
		d.CommodityNames, d.ParameterRequirements, d.PurchaseQuantities,
		d.ControlAmounts, d.SuggestedBrands, d.BusinessRequirements, d.DownloadFiles,
	}
	n := 0
	for _, a := range arrays {
		n = max(n, len(a))
	}

	items := make([]Item, n)
	for i := range items {
		items[i] = Item{
			Index:       i + 1,
			Name:        at(d.CommodityNames, i),
			Parameters:  at(d.ParameterRequirements, i),
			Quantity:    at(d.PurchaseQuantities, i),
			Amount:      at(d.ControlAmounts, i),
			Brand:       at(d.SuggestedBrands, i),
			Business:    at(d.BusinessRequirements, i),
			DownloadURL: at(d.DownloadFiles, i),
		}
	}
	return items
}

func at(arr []string, i int) string {
	if i < len(arr) {
		return orDash(arr[i])
	}
	return format.Placeholder
}

func orDash(s string) string {
	if s == "" {
		return format.Placeholder
	}
	return s
}

// safeRender превращает панику отрисовки в ошибку.
func safeRender(render func(*models.ProcurementDetail) (View, error), d *models.ProcurementDetail) (v View, err error) {
	defer func() {
		if r := recover(); r != nil {
			v = View{}
			err = fmt.Errorf("%v", r)
		}
	}()
	return render(d)
}

type Controller struct {
	backend  Backend
	stack    *modalstack.Stack
	notifier notify.Notifier
	log      *zap.Logger
	render   func(*models.ProcurementDetail) (View, error)

	mu   sync.Mutex
	gen  uint64
	view View
}

func New(backend Backend, stack *modalstack.Stack, n notify.Notifier, log *zap.Logger) *Controller {
	if stack == nil {
		stack = modalstack.New()
	}
	return &Controller{
		backend:  backend,
		stack:    stack,
		notifier: notify.OrNop(n),
		log:      logger.OrNop(log),
		render:   Render,
	}
}

// SetRenderer подменяет функцию отрисовки.
func (c *Controller) SetRenderer(fn func(*models.ProcurementDetail) (View, error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.render = fn
}

// Open сразу показывает заглушку загрузки, затем загружает и отрисовывает карточку.
func (c *Controller) Open(ctx context.Context, id int) (View, error) {
	c.mu.Lock()
	c.gen++
	gen := c.gen
	c.view = loadingView(id)
	render := c.render
	c.mu.Unlock()
	c.stack.Open(ModalID)

	d, err := c.backend.GetProcurement(ctx, id)

	var next View
	if err != nil {
		c.log.Warn("load detail failed", zap.Int("id", id), zap.Error(err))
		next = failedView(id, LoadFailedText, api.Message(err, loadFallback))
	} else if next, err = safeRender(render, d); err != nil {
		c.log.Error("render detail failed", zap.Int("id", id), zap.Error(err))
		next = failedView(id, RenderErrorText, err.Error())
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return c.view, ErrStale
	}
	c.view = next
	if err != nil {
		c.notifier.Notify(notify.Error, next.ErrorTitle+": "+next.ErrorMessage)
	}
	return next, err
}

func (c *Controller) Close() {
	c.mu.Lock()
	c.gen++
	c.view = View{Status: Closed}
	c.mu.Unlock()
	c.stack.Close(ModalID)
}

func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view
}
