package progress

import (
	"strings"

	"emall/models"

	"github.com/google/uuid"
)

// CommodityDraft: редактируемая строка товара.
type CommodityDraft struct {
	Key string
	models.Commodity
}

// SupplierDraft: карточка поставщика в редакторе. ID == 0 у ещё не сохранённой.
type SupplierDraft struct {
	Key         string
	ID          int
	Name        string
	Source      string
	Contact     string
	StoreName   string
	IsSelected  bool
	Commodities []CommodityDraft
	// Dirty: есть правки, не отправленные на сервер
	Dirty bool
}

func newCommodity(c models.Commodity) CommodityDraft {
	return CommodityDraft{Key: uuid.NewString(), Commodity: c}
}

func newDraft() *SupplierDraft {
	return &SupplierDraft{
		Key:         uuid.NewString(),
		Commodities: []CommodityDraft{newCommodity(models.Commodity{Quantity: 1})},
		Dirty:       true,
	}
}

func draftFrom(s models.Supplier) *SupplierDraft {
	d := &SupplierDraft{
		Key:         uuid.NewString(),
		ID:          s.ID,
		Name:        s.Name,
		Source:      s.Source,
		Contact:     s.Contact,
		StoreName:   s.StoreName,
		IsSelected:  s.IsSelected,
		Commodities: make([]CommodityDraft, 0, len(s.Commodities)),
	}
	for _, c := range s.Commodities {
		d.Commodities = append(d.Commodities, newCommodity(c))
	}
	return d
}

// Total: сумма по строкам, считается при каждом обращении.
func (d *SupplierDraft) Total() float64 {
	var total float64
	for _, c := range d.Commodities {
		total += c.Subtotal()
	}
	return total
}

func (d *SupplierDraft) Saved() bool { return d.ID != 0 }

// Input собирает тело запроса add-supplier / update.
func (d *SupplierDraft) Input() models.SupplierInput {
	in := models.SupplierInput{
		Name:        strings.TrimSpace(d.Name),
		Source:      strings.TrimSpace(d.Source),
		Contact:     strings.TrimSpace(d.Contact),
		StoreName:   strings.TrimSpace(d.StoreName),
		IsSelected:  d.IsSelected,
		Commodities: make([]models.Commodity, 0, len(d.Commodities)),
	}
	for _, c := range d.Commodities {
		c.Name = strings.TrimSpace(c.Name)
		in.Commodities = append(in.Commodities, c.Commodity)
	}
	return in
}

func (d *SupplierDraft) commodity(key string) int {
	for i, c := range d.Commodities {
		if c.Key == key {
			return i
		}
	}
	return -1
}

func (d *SupplierDraft) clone() SupplierDraft {
	cp := *d
	cp.Commodities = append([]CommodityDraft(nil), d.Commodities...)
	return cp
}
