package progress

// SupplierStat: строка сводки по поставщику.
type SupplierStat struct {
	ID         int
	Name       string
	IsSelected bool
	Quote      float64
	Profit     float64
	ProfitRate float64
}

// Overview: сводка только для чтения над сохранёнными карточками.
// Несохранённые черновики в неё не входят, правки сохранённых учитываются сразу.
type Overview struct {
	SupplierCount int
	SelectedCount int
	BackupCount   int
	Budget        float64
	Cost          float64
	Suppliers     []SupplierStat
}

// Profit = предложение − себестоимость; доля считается от бюджета, 0 при бюджете ≤ 0.
func Profit(quote, cost, budget float64) (float64, float64) {
	profit := quote - cost
	if budget <= 0 {
		return profit, 0
	}
	return profit, profit / budget
}

func buildOverview(drafts []*SupplierDraft, budget, cost float64) Overview {
	o := Overview{
		Budget:    budget,
		Cost:      cost,
		Suppliers: make([]SupplierStat, 0, len(drafts)),
	}
	for _, d := range drafts {
		if !d.Saved() {
			continue
		}
		o.SupplierCount++
		if d.IsSelected {
			o.SelectedCount++
		}
		quote := d.Total()
		profit, rate := Profit(quote, cost, budget)
		o.Suppliers = append(o.Suppliers, SupplierStat{
			ID:         d.ID,
			Name:       d.Name,
			IsSelected: d.IsSelected,
			Quote:      quote,
			Profit:     profit,
			ProfitRate: rate,
		})
	}
	o.BackupCount = o.SupplierCount - o.SelectedCount
	return o
}
