// Package progress ведёт окно хода закупки: загрузка, сводка, форма,
// редактор поставщиков и журнал примечаний.
package progress

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"emall/internal/dashboard/api"
	"emall/internal/dashboard/modalstack"
	"emall/internal/dashboard/notify"
	"emall/internal/logger"
	"emall/internal/validate"
	"emall/models"

	"go.uber.org/zap"
)

const (
	ModalID  = "progressModal"
	PageSize = 5

	LoadingText         = "加载采购进度..."
	LoadFailedText      = "加载失败"
	SaveSuccessText     = "采购进度保存成功"
	SupplierAddedText   = "供应商添加成功"
	SupplierUpdatedText = "供应商更新成功"
	SupplierDeletedText = "供应商删除成功"
	RemarkAddedText     = "备注添加成功"
	DeleteConfirmText   = "确定要删除这个供应商吗？此操作不可撤销。"
	NetworkText         = "网络错误，请重试"
	FailureText         = "操作失败"

	loadFallback = "无法加载采购进度，请稍后重试"
	refreshText  = "刷新采购进度失败"
)

var (
	ErrBusy         = errors.New("progress: another request is in flight")
	ErrNotOpen      = errors.New("progress: modal is not loaded")
	ErrCancelled    = errors.New("progress: cancelled by user")
	ErrStale        = errors.New("progress: response for a closed or replaced modal")
	ErrUnknownDraft = errors.New("progress: unknown supplier draft")
	ErrSavedDraft   = errors.New("progress: saved supplier must be deleted on the server")
)

// ValidationError: ошибка проверки полей, до запроса или из ответа сервера.
type ValidationError struct {
	Errors validate.Errors
	Err    error
}

func (e *ValidationError) Error() string { return e.Errors.Error() }

func (e *ValidationError) Unwrap() error { return e.Err }

func ValidateSupplier(in models.SupplierInput) error {
	if errs := validate.Supplier(in); errs != nil {
		return &ValidationError{Errors: errs}
	}
	return nil
}

func ValidateCommodity(c models.Commodity) error {
	if errs := validate.Commodity(c); errs != nil {
		return &ValidationError{Errors: errs}
	}
	return nil
}

type Backend interface {
	GetProgress(ctx context.Context, id int) (*models.Progress, error)
	UpdateProgress(ctx context.Context, id int, upd models.ProgressUpdate) (*models.Envelope, error)
	AddSupplier(ctx context.Context, procurementID int, in models.SupplierInput) (*models.Envelope, error)
	UpdateSupplier(ctx context.Context, supplierID int, in models.SupplierInput) (*models.Envelope, error)
	DeleteSupplier(ctx context.Context, supplierID int) (*models.Envelope, error)
}

// Confirmer спрашивает пользователя перед необратимым действием.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) bool
}

type ConfirmFunc func(ctx context.Context, prompt string) bool

func (f ConfirmFunc) Confirm(ctx context.Context, prompt string) bool { return f(ctx, prompt) }

type Status int

const (
	Closed Status = iota
	Loading
	Loaded
	Saving
	SavingFailed
	LoadFailed
)

func (s Status) String() string {
	switch s {
	case Loading:
		return "loading"
	case Loaded:
		return "loaded"
	case Saving:
		return "saving"
	case SavingFailed:
		return "saving_failed"
	case LoadFailed:
		return "load_failed"
	default:
		return "closed"
	}
}

// Form: редактируемые поля хода закупки и черновик нового примечания.
type Form struct {
	BiddingStatus models.BiddingStatus
	ClientContact string
	ClientPhone   string
	Cost          float64
	RemarkContent string
	RemarkAuthor  string
}

type View struct {
	Status        Status
	ProcurementID int
	Title         string
	Number        string
	Overview      Overview
	Form          Form
	Suppliers     []SupplierDraft
	Page          int
	Pages         int
	Remarks       []models.Remark
	ErrorTitle    string
	ErrorMessage  string
}

type Option func(*Controller)

func WithNotifier(n notify.Notifier) Option { return func(c *Controller) { c.notifier = notify.OrNop(n) } }

func WithLogger(l *zap.Logger) Option { return func(c *Controller) { c.log = logger.OrNop(l) } }

func WithClock(now func() time.Time) Option { return func(c *Controller) { c.now = now } }

func WithStack(s *modalstack.Stack) Option { return func(c *Controller) { c.stack = s } }

// WithConfirmer задаёт подтверждение удаления по умолчанию.
func WithConfirmer(cf Confirmer) Option { return func(c *Controller) { c.confirm = cf } }

type Controller struct {
	backend  Backend
	stack    *modalstack.Stack
	notifier notify.Notifier
	log      *zap.Logger
	now      func() time.Time
	confirm  Confirmer

	mu         sync.Mutex
	gen        uint64
	status     Status
	id         int
	loaded     *models.Progress
	form       Form
	formDirty  bool
	drafts     []*SupplierDraft
	picked     map[string]bool
	remarks    []models.Remark
	page       int
	busy       bool
	errTitle   string
	errMessage string
}

func New(backend Backend, opts ...Option) *Controller {
	c := &Controller{
		backend:  backend,
		stack:    modalstack.New(),
		notifier: notify.Nop,
		log:      zap.NewNop(),
		now:      time.Now,
		page:     1,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

func (c *Controller) reset(status Status, id int) {
	c.gen++
	c.status = status
	c.id = id
	c.loaded = nil
	c.form = Form{}
	c.formDirty = false
	c.drafts = nil
	c.picked = map[string]bool{}
	c.remarks = nil
	c.page = 1
	c.busy = false
	c.errTitle, c.errMessage = "", ""
}

// Open показывает заглушку загрузки и запрашивает ход закупки.
// Ответ, пришедший после Close или нового Open, отбрасывается.
func (c *Controller) Open(ctx context.Context, id int) error {
	c.mu.Lock()
	c.reset(Loading, id)
	gen := c.gen
	c.mu.Unlock()
	c.stack.Open(ModalID)

	p, err := c.backend.GetProgress(ctx, id)

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		c.log.Debug("stale progress response discarded", zap.Int("procurement_id", id))
		return ErrStale
	}
	if err != nil {
		c.status = LoadFailed
		c.errTitle = LoadFailedText
		c.errMessage = api.Message(err, loadFallback)
		c.log.Warn("load progress failed", zap.Int("procurement_id", id), zap.Error(err))
		c.notifier.Notify(notify.Error, c.errTitle+": "+c.errMessage)
		return err
	}
	c.merge(p)
	c.status = Loaded
	return nil
}

func (c *Controller) Close() {
	c.mu.Lock()
	c.reset(Closed, 0)
	c.mu.Unlock()
	c.stack.Close(ModalID)
}

// DismissError убирает панель ошибки: после неудачного сохранения возвращает
// к форме, после неудачной загрузки закрывает окно.
func (c *Controller) DismissError() {
	c.mu.Lock()
	switch c.status {
	case SavingFailed:
		c.status = Loaded
		c.errTitle, c.errMessage = "", ""
		c.mu.Unlock()
	case LoadFailed:
		c.mu.Unlock()
		c.Close()
	default:
		c.mu.Unlock()
	}
}

func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := View{
		Status:        c.status,
		ProcurementID: c.id,
		Form:          c.form,
		Page:          c.page,
		Pages:         c.pages(),
		ErrorTitle:    c.errTitle,
		ErrorMessage:  c.errMessage,
	}
	switch c.status {
	case Closed:
		return View{Status: Closed}
	case Loading:
		v.Title = LoadingText
		return v
	case LoadFailed:
		return v
	}

	v.Title = c.loaded.ProcurementTitle
	v.Number = c.loaded.ProcurementNumber
	v.Overview = buildOverview(c.drafts, c.loaded.TotalBudget, c.form.Cost)
	v.Remarks = append([]models.Remark(nil), c.remarks...)
	for _, d := range c.visible() {
		v.Suppliers = append(v.Suppliers, d.clone())
	}
	return v
}

// Overview пересчитывается из текущих карточек и себестоимости формы.
func (c *Controller) Overview() Overview {
	return c.View().Overview
}

func (c *Controller) Draft(key string) (SupplierDraft, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if d := c.draft(key); d != nil {
		return d.clone(), true
	}
	return SupplierDraft{}, false
}

// merge подставляет данные сервера, сохраняя несохранённые правки пользователя.
func (c *Controller) merge(p *models.Progress) {
	edited := map[int]*SupplierDraft{}
	selection := map[int]bool{}
	var unsaved []*SupplierDraft
	for _, d := range c.drafts {
		switch {
		case d.Dirty && d.Saved():
			edited[d.ID] = d
		case d.Dirty:
			unsaved = append(unsaved, d)
		case c.picked[d.Key]:
			selection[d.ID] = d.IsSelected
		}
	}

	picked := map[string]bool{}
	drafts := make([]*SupplierDraft, 0, len(p.SuppliersInfo)+len(unsaved))
	for _, s := range p.SuppliersInfo {
		if d, ok := edited[s.ID]; ok {
			if c.picked[d.Key] {
				picked[d.Key] = true
			}
			drafts = append(drafts, d)
			continue
		}
		d := draftFrom(s)
		if sel, ok := selection[s.ID]; ok {
			d.IsSelected = sel
			picked[d.Key] = true
		}
		drafts = append(drafts, d)
	}
	c.drafts = append(drafts, unsaved...)
	c.picked = picked

	if !c.formDirty {
		c.form.BiddingStatus = p.BiddingStatus
		c.form.ClientContact = p.ClientContact
		c.form.ClientPhone = p.ClientPhone
		c.form.Cost = p.Cost
	}
	c.remarks = append([]models.Remark(nil), p.RemarksHistory...)
	c.loaded = p
	c.page = min(c.page, c.pages())
}

func (c *Controller) draft(key string) *SupplierDraft {
	for _, d := range c.drafts {
		if d.Key == key {
			return d
		}
	}
	return nil
}

func (c *Controller) pages() int {
	return max(1, (len(c.drafts)+PageSize-1)/PageSize)
}

func (c *Controller) visible() []*SupplierDraft {
	from := (c.page - 1) * PageSize
	if from >= len(c.drafts) {
		return nil
	}
	return c.drafts[from:min(from+PageSize, len(c.drafts))]
}

// SetPage листает список поставщиков. Правки хранятся в памяти и не теряются.
func (c *Controller) SetPage(page int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.page = min(max(page, 1), c.pages())
	return c.page
}

// edit применяет правку к открытому окну. Во время сохранения правки запрещены.
func (c *Controller) edit(fn func() error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.status {
	case Saving:
		return ErrBusy
	case Loaded, SavingFailed:
	default:
		return ErrNotOpen
	}
	if err := fn(); err != nil {
		return err
	}
	if c.status == SavingFailed {
		c.status = Loaded
		c.errTitle, c.errMessage = "", ""
	}
	return nil
}

func formUpdate(f Form) models.ProgressUpdate {
	upd := models.ProgressUpdate{
		ClientContact: &f.ClientContact,
		ClientPhone:   &f.ClientPhone,
		Cost:          &f.Cost,
	}
	if f.BiddingStatus != "" {
		upd.BiddingStatus = &f.BiddingStatus
	}
	return upd
}

func (c *Controller) SetForm(f Form) error {
	if errs := validate.Progress(formUpdate(f)); errs != nil {
		return &ValidationError{Errors: errs}
	}
	return c.edit(func() error {
		c.form = f
		c.formDirty = true
		return nil
	})
}

// NewSupplier добавляет пустую карточку с одной строкой товара и открывает её страницу.
func (c *Controller) NewSupplier() (string, error) {
	d := newDraft()
	err := c.edit(func() error {
		c.drafts = append(c.drafts, d)
		c.page = c.pages()
		return nil
	})
	return d.Key, err
}

// EditSupplier меняет карточку через fn. Key и ID не меняются.
func (c *Controller) EditSupplier(key string, fn func(d *SupplierDraft)) error {
	return c.edit(func() error {
		d := c.draft(key)
		if d == nil {
			return ErrUnknownDraft
		}
		k, id := d.Key, d.ID
		fn(d)
		d.Key, d.ID = k, id
		d.Dirty = true
		return nil
	})
}

// SetSupplierSelected меняет отметку "выбран"; отправляется вместе с SaveAll.
func (c *Controller) SetSupplierSelected(key string, selected bool) error {
	return c.edit(func() error {
		d := c.draft(key)
		if d == nil {
			return ErrUnknownDraft
		}
		d.IsSelected = selected
		c.picked[key] = true
		return nil
	})
}

func (c *Controller) AddCommodity(key string) (string, error) {
	row := newCommodity(models.Commodity{Quantity: 1})
	err := c.edit(func() error {
		d := c.draft(key)
		if d == nil {
			return ErrUnknownDraft
		}
		d.Commodities = append(d.Commodities, row)
		d.Dirty = true
		return nil
	})
	return row.Key, err
}

// SetCommodity заменяет строку товара и возвращает пересчитанные сумму строки и итог поставщика.
func (c *Controller) SetCommodity(key, row string, v models.Commodity) (subtotal, total float64, err error) {
	err = c.edit(func() error {
		d := c.draft(key)
		if d == nil {
			return ErrUnknownDraft
		}
		i := d.commodity(row)
		if i < 0 {
			return ErrUnknownDraft
		}
		d.Commodities[i].Commodity = v
		d.Dirty = true
		subtotal, total = d.Commodities[i].Subtotal(), d.Total()
		return nil
	})
	return subtotal, total, err
}

func (c *Controller) RemoveCommodity(key, row string) error {
	return c.edit(func() error {
		d := c.draft(key)
		if d == nil {
			return ErrUnknownDraft
		}
		i := d.commodity(row)
		if i < 0 {
			return ErrUnknownDraft
		}
		d.Commodities = append(d.Commodities[:i:i], d.Commodities[i+1:]...)
		d.Dirty = true
		return nil
	})
}

// DiscardDraft убирает несохранённую карточку.
func (c *Controller) DiscardDraft(key string) error {
	return c.edit(func() error {
		for i, d := range c.drafts {
			if d.Key != key {
				continue
			}
			if d.Saved() {
				return ErrSavedDraft
			}
			c.drafts = append(c.drafts[:i:i], c.drafts[i+1:]...)
			c.page = min(c.page, c.pages())
			return nil
		}
		return ErrUnknownDraft
	})
}

// ready проверяет, что окно загружено и свободно. Вызывается под c.mu.
func (c *Controller) ready() error {
	if c.busy || c.status == Saving {
		return ErrBusy
	}
	if c.status != Loaded && c.status != SavingFailed {
		return ErrNotOpen
	}
	return nil
}

// occupy занимает окно под запрос и возвращает токен открытия. Вызывается под c.mu.
func (c *Controller) occupy(status Status) (uint64, int) {
	c.busy = true
	c.status = status
	c.errTitle, c.errMessage = "", ""
	return c.gen, c.id
}

func (c *Controller) begin(status Status) (uint64, int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ready(); err != nil {
		return 0, 0, err
	}
	gen, id := c.occupy(status)
	return gen, id, nil
}

func (c *Controller) failure(err error) string {
	if api.IsTransport(err) {
		return NetworkText
	}
	return api.Message(err, FailureText)
}

// withFields превращает ошибки полей из ответа сервера в ValidationError.
func withFields(err error) error {
	var be *api.BackendError
	if errors.As(err, &be) && len(be.Fields) > 0 {
		return &ValidationError{Errors: validate.Errors(be.Fields), Err: err}
	}
	return err
}

// mutate выполняет запрос над поставщиками и при успехе перечитывает ход закупки.
func (c *Controller) mutate(ctx context.Context, op, okText, failPrefix string, call func(ctx context.Context, id int) error, onSuccess func()) error {
	gen, id, err := c.begin(Loaded)
	if err != nil {
		return err
	}

	err = call(ctx, id)

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		c.log.Debug("stale response discarded", zap.String("op", op), zap.Int("procurement_id", id))
		return ErrStale
	}
	c.busy = false
	if err != nil {
		c.mu.Unlock()
		c.log.Warn(op+" failed", zap.Int("procurement_id", id), zap.Error(err))
		c.notifier.Notify(notify.Error, failPrefix+c.failure(err))
		return withFields(err)
	}
	if onSuccess != nil {
		onSuccess()
	}
	c.mu.Unlock()

	c.notifier.Notify(notify.Success, okText)
	return c.reload(ctx, gen, id)
}

func (c *Controller) reload(ctx context.Context, gen uint64, id int) error {
	p, err := c.backend.GetProgress(ctx, id)

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return ErrStale
	}
	if err != nil {
		c.log.Warn("reload progress failed", zap.Int("procurement_id", id), zap.Error(err))
		c.notifier.Notify(notify.Warning, refreshText)
		return fmt.Errorf("reload progress: %w", err)
	}
	c.merge(p)
	return nil
}

func (c *Controller) invalid(err error) error {
	c.notifier.Notify(notify.Error, err.Error())
	return err
}

func (c *Controller) AddSupplier(ctx context.Context, in models.SupplierInput) error {
	return c.addSupplier(ctx, in, nil)
}

func (c *Controller) addSupplier(ctx context.Context, in models.SupplierInput, onSuccess func()) error {
	if err := ValidateSupplier(in); err != nil {
		return c.invalid(err)
	}
	return c.mutate(ctx, "add supplier", SupplierAddedText, "", func(ctx context.Context, id int) error {
		_, err := c.backend.AddSupplier(ctx, id, in)
		return err
	}, onSuccess)
}

func (c *Controller) UpdateSupplier(ctx context.Context, supplierID int, in models.SupplierInput) error {
	return c.updateSupplier(ctx, supplierID, in, nil)
}

func (c *Controller) updateSupplier(ctx context.Context, supplierID int, in models.SupplierInput, onSuccess func()) error {
	if err := ValidateSupplier(in); err != nil {
		return c.invalid(err)
	}
	return c.mutate(ctx, "update supplier", SupplierUpdatedText, "保存失败: ", func(ctx context.Context, _ int) error {
		_, err := c.backend.UpdateSupplier(ctx, supplierID, in)
		return err
	}, onSuccess)
}

// DeleteSupplier удаляет поставщика после явного подтверждения.
// Без Confirmer удаление не выполняется.
func (c *Controller) DeleteSupplier(ctx context.Context, supplierID int, confirm Confirmer) error {
	if confirm == nil {
		confirm = c.confirm
	}
	if confirm == nil || !confirm.Confirm(ctx, DeleteConfirmText) {
		return ErrCancelled
	}
	return c.mutate(ctx, "delete supplier", SupplierDeletedText, "删除失败: ", func(ctx context.Context, _ int) error {
		_, err := c.backend.DeleteSupplier(ctx, supplierID)
		return err
	}, func() {
		for i, d := range c.drafts {
			if d.ID == supplierID {
				c.drafts = append(c.drafts[:i:i], c.drafts[i+1:]...)
				break
			}
		}
	})
}

// SaveDraft отправляет карточку: новую через add-supplier, сохранённую через update.
func (c *Controller) SaveDraft(ctx context.Context, key string) error {
	c.mu.Lock()
	d := c.draft(key)
	if d == nil {
		c.mu.Unlock()
		return ErrUnknownDraft
	}
	in, supplierID := d.Input(), d.ID
	c.mu.Unlock()

	if supplierID == 0 {
		return c.addSupplier(ctx, in, func() {
			for i, d := range c.drafts {
				if d.Key == key {
					c.drafts = append(c.drafts[:i:i], c.drafts[i+1:]...)
					break
				}
			}
		})
	}
	return c.updateSupplier(ctx, supplierID, in, func() {
		if d := c.draft(key); d != nil {
			d.Dirty = false
			delete(c.picked, key)
		}
	})
}

// AddRemark сразу дописывает примечание в журнал и сохраняет его.
// При ошибке запись убирается из журнала.
func (c *Controller) AddRemark(ctx context.Context, content, author string) error {
	content, author = strings.TrimSpace(content), strings.TrimSpace(author)
	if errs := validate.Remark(content, author); errs != nil {
		return c.invalid(&ValidationError{Errors: errs})
	}

	gen, id, err := c.begin(Loaded)
	if err != nil {
		return err
	}
	remark := models.Remark{CreatedBy: author, RemarkContent: content, CreatedAt: c.now()}
	c.mu.Lock()
	c.remarks = append(c.remarks, remark)
	c.mu.Unlock()

	_, err = c.backend.UpdateProgress(ctx, id, models.ProgressUpdate{
		NewRemark: &models.NewRemark{RemarkContent: content, CreatedBy: author},
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return ErrStale
	}
	c.busy = false
	if err != nil {
		for i := len(c.remarks) - 1; i >= 0; i-- {
			if c.remarks[i] == remark {
				c.remarks = append(c.remarks[:i:i], c.remarks[i+1:]...)
				break
			}
		}
		c.log.Warn("add remark failed", zap.Int("procurement_id", id), zap.Error(err))
		c.notifier.Notify(notify.Error, "添加备注失败: "+c.failure(err))
		return withFields(err)
	}
	c.notifier.Notify(notify.Success, RemarkAddedText)
	return nil
}

// update собирает тело SaveAll: поля формы, отметки поставщиков и новое примечание.
func (c *Controller) update() (models.ProgressUpdate, error) {
	f := c.form
	upd := formUpdate(f)
	for _, d := range c.drafts {
		if d.Saved() {
			upd.SupplierSelection = append(upd.SupplierSelection, models.SupplierSelection{SupplierID: d.ID, IsSelected: d.IsSelected})
		}
	}
	content, author := strings.TrimSpace(f.RemarkContent), strings.TrimSpace(f.RemarkAuthor)
	if content != "" || author != "" {
		if errs := validate.Remark(content, author); errs != nil {
			return upd, &ValidationError{Errors: errs}
		}
		upd.NewRemark = &models.NewRemark{RemarkContent: content, CreatedBy: author}
	}
	if errs := validate.Progress(upd); errs != nil {
		return upd, &ValidationError{Errors: errs}
	}
	return upd, nil
}

// SaveAll отправляет форму одним запросом и перечитывает ход закупки.
// При ошибке правки пользователя остаются в форме.
func (c *Controller) SaveAll(ctx context.Context) error {
	c.mu.Lock()
	if err := c.ready(); err != nil {
		c.mu.Unlock()
		return err
	}
	upd, err := c.update()
	if err != nil {
		c.mu.Unlock()
		return c.invalid(err)
	}
	gen, id := c.occupy(Saving)
	c.mu.Unlock()

	_, err = c.backend.UpdateProgress(ctx, id, upd)

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		c.log.Debug("stale save response discarded", zap.Int("procurement_id", id))
		return ErrStale
	}
	c.busy = false
	if err != nil {
		c.status = SavingFailed
		c.errTitle = "保存失败"
		c.errMessage = c.failure(err)
		c.mu.Unlock()
		c.log.Warn("save progress failed", zap.Int("procurement_id", id), zap.Error(err))
		c.notifier.Notify(notify.Error, "保存失败: "+c.errMessage)
		return withFields(err)
	}
	c.status = Loaded
	c.formDirty = false
	c.form.RemarkContent, c.form.RemarkAuthor = "", ""
	c.picked = map[string]bool{}
	c.mu.Unlock()

	c.notifier.Notify(notify.Success, SaveSuccessText)
	return c.reload(ctx, gen, id)
}
