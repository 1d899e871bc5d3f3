// Package selection переключает флаг выбора закупки: оптимистично в таблице,
// с подтверждением или откатом по ответу сервера.
package selection

import (
	"context"
	"errors"
	"sync"

	"emall/internal/dashboard/api"
	"emall/internal/dashboard/listing"
	"emall/internal/dashboard/notify"
	"emall/internal/logger"
	"emall/models"

	"go.uber.org/zap"
)

const (
	SuccessText = "选择状态更新成功"
	NetworkText = "网络错误，请重试"
	FailureText = "操作失败"
)

var (
	ErrUnknownRow = errors.New("selection: row is not on the current page")
	ErrInFlight   = errors.New("selection: toggle already in flight")
)

type Backend interface {
	SetSelection(ctx context.Context, id int, desired bool) (*models.Envelope, error)
}

// Table: то, что контроллеру нужно от таблицы; *listing.Controller подходит.
type Table interface {
	Row(id int) (listing.Row, bool)
	Page() listing.Page
	SetRowSelected(id int, selected bool) bool
	SetRowPending(id int, pending bool) bool
	ShowSelectedOnly() bool
	Load(ctx context.Context) (listing.Page, error)
}

type Controller struct {
	backend  Backend
	table    Table
	notifier notify.Notifier
	log      *zap.Logger
}

func New(backend Backend, table Table, n notify.Notifier, log *zap.Logger) *Controller {
	return &Controller{
		backend:  backend,
		table:    table,
		notifier: notify.OrNop(n),
		log:      logger.OrNop(log),
	}
}

// Toggle выставляет desired и возвращает состояние, подтверждённое сервером.
// При ошибке строка возвращается в прежнее состояние, а ошибка доводится до пользователя.
func (c *Controller) Toggle(ctx context.Context, id int, desired bool) (bool, error) {
	confirmed, err := c.toggle(ctx, id, desired)
	if !errors.Is(err, ErrInFlight) && !errors.Is(err, ErrUnknownRow) {
		c.reloadIfFiltered(ctx)
	}
	return confirmed, err
}

func (c *Controller) toggle(ctx context.Context, id int, desired bool) (bool, error) {
	row, ok := c.table.Row(id)
	if !ok {
		return false, ErrUnknownRow
	}
	prior := row.Selected()

	if !c.table.SetRowPending(id, true) {
		return prior, ErrInFlight
	}
	defer c.table.SetRowPending(id, false)

	c.table.SetRowSelected(id, desired)

	env, err := c.backend.SetSelection(ctx, id, desired)
	if err != nil {
		c.table.SetRowSelected(id, prior)
		msg := NetworkText
		if !api.IsTransport(err) {
			msg = api.Message(err, FailureText)
		}
		c.log.Warn("selection toggle failed", zap.Int("id", id), zap.Bool("desired", desired), zap.Error(err))
		c.notifier.Notify(notify.Error, msg)
		return prior, err
	}

	confirmed := desired
	if env != nil && env.IsSelected != nil {
		confirmed = *env.IsSelected
	}
	c.table.SetRowSelected(id, confirmed)
	c.notifier.Notify(notify.Success, SuccessText)
	return confirmed, nil
}

type Result struct {
	ID        int
	Confirmed bool
	Err       error
}

// SelectAll переключает все видимые строки, которые ещё не в состоянии state.
// Каждая строка, отдельный запрос со своим откатом; частичный отказ не откатывает остальные.
func (c *Controller) SelectAll(ctx context.Context, state bool) []Result {
	var ids []int
	for _, r := range c.table.Page().Rows {
		if r.Selected() != state {
			ids = append(ids, r.Procurement.ID)
		}
	}
	if len(ids) == 0 {
		return nil
	}

	results := make([]Result, len(ids))
	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func(i, id int) {
			defer wg.Done()
			confirmed, err := c.toggle(ctx, id, state)
			results[i] = Result{ID: id, Confirmed: confirmed, Err: err}
		}(i, id)
	}
	wg.Wait()

	c.reloadIfFiltered(ctx)
	return results
}

// В режиме "только выбранные" строка могла выпасть из выборки.
func (c *Controller) reloadIfFiltered(ctx context.Context) {
	if !c.table.ShowSelectedOnly() {
		return
	}
	if _, err := c.table.Load(ctx); err != nil && !errors.Is(err, listing.ErrStale) {
		c.log.Warn("reload after selection failed", zap.Error(err))
	}
}
