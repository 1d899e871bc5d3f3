package models

import (
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"time"
)

// Сущность закупки (лот площадки emall)
type Procurement struct {
	ID                int    `db:"id" json:"id"`
	ProjectTitle      string `db:"project_title" json:"project_title"`
	ProjectNumber     string `db:"project_number" json:"project_number"`
	PurchasingUnit    string `db:"purchasing_unit" json:"purchasing_unit"`
	Region            string `db:"region" json:"region"`
	URL               string `db:"url" json:"url"`
	TotalPriceControl string `db:"total_price_control" json:"total_price_control"`
	PublishDate       string `db:"publish_date" json:"publish_date"`
	QuoteStartTime    string `db:"quote_start_time" json:"quote_start_time"`
	QuoteEndTime      string `db:"quote_end_time" json:"quote_end_time"`
	IsSelected        bool   `db:"is_selected" json:"is_selected"`
}

// Детальная карточка закупки. Массивы параллельны: одинаковый индекс = один товар,
// длины могут не совпадать.
type ProcurementDetail struct {
	Procurement
	CommodityNames        []string `json:"commodity_names"`
	ParameterRequirements []string `json:"parameter_requirements"`
	PurchaseQuantities    []string `json:"purchase_quantities"`
	ControlAmounts        []string `json:"control_amounts"`
	SuggestedBrands       []string `json:"suggested_brands"`
	BusinessRequirements  []string `json:"business_requirements"`
	DownloadFiles         []string `json:"download_files"`
}

// Normalize заменяет отсутствующие массивы пустыми, null наружу не уходит.
func (d *ProcurementDetail) Normalize() {
	for _, arr := range []*[]string{
		&d.CommodityNames, &d.ParameterRequirements, &d.PurchaseQuantities,
		&d.ControlAmounts, &d.SuggestedBrands, &d.BusinessRequirements, &d.DownloadFiles,
	} {
		if *arr == nil {
			*arr = []string{}
		}
	}
}

// Ключи фильтров списка, совпадают с параметрами запроса
const (
	FilterProjectTitle      = "project_title"
	FilterPurchasingUnit    = "purchasing_unit"
	FilterTotalPriceControl = "total_price_control"
	FilterRegion            = "region"
	FilterProjectNumber     = "project_number"
)

// FilterKeys перечисляет поддерживаемые фильтры в порядке их вывода в запрос.
var FilterKeys = []string{
	FilterProjectTitle,
	FilterPurchasingUnit,
	FilterTotalPriceControl,
	FilterRegion,
	FilterProjectNumber,
}

// Числовой поиск по бюджету, параметр total_price_control_search
const PriceSearchParam = "total_price_control_search"

type PriceOperator string

const (
	PriceGT    PriceOperator = ">"
	PriceGTE   PriceOperator = ">="
	PriceLT    PriceOperator = "<"
	PriceLTE   PriceOperator = "<="
	PriceEQ    PriceOperator = "="
	PriceRange PriceOperator = "range"
)

// PriceSearch сравнивает нормализованный бюджет в юанях. Для range нужны Min и Max.
type PriceSearch struct {
	Operator PriceOperator `json:"operator"`
	Value    float64       `json:"value"`
	Min      float64       `json:"min,omitempty"`
	Max      float64       `json:"max,omitempty"`
}

// ParsePriceSearch разбирает JSON параметра. "==" принимается как "=".
func ParsePriceSearch(raw string) (*PriceSearch, error) {
	var ps PriceSearch
	if err := json.Unmarshal([]byte(raw), &ps); err != nil {
		return nil, fmt.Errorf("parse %s: %w", PriceSearchParam, err)
	}
	if ps.Operator == "==" {
		ps.Operator = PriceEQ
	}
	if err := ps.Validate(); err != nil {
		return nil, err
	}
	return &ps, nil
}

func (ps PriceSearch) Validate() error {
	for _, v := range []float64{ps.Value, ps.Min, ps.Max} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%s: value is not a number", PriceSearchParam)
		}
	}
	switch ps.Operator {
	case PriceGT, PriceGTE, PriceLT, PriceLTE, PriceEQ:
		return nil
	case PriceRange:
		if ps.Min > ps.Max {
			return fmt.Errorf("%s: min %v greater than max %v", PriceSearchParam, ps.Min, ps.Max)
		}
		return nil
	}
	return fmt.Errorf("%s: unknown operator %q", PriceSearchParam, ps.Operator)
}

// Дескриптор запроса страницы списка
type ListRequest struct {
	Draw             int               `json:"draw"`
	PageStart        int               `json:"page_start"`
	PageSize         int               `json:"page_size"`
	SearchTerm       string            `json:"search_term"`
	Ordering         string            `json:"ordering"`
	Filters          map[string]string `json:"filters"`
	ShowSelectedOnly bool              `json:"show_selected_only"`
	PriceSearch      *PriceSearch      `json:"price_search,omitempty"`
}

// Values кодирует дескриптор в параметры GET /emall/procurements/.
func (r ListRequest) Values() url.Values {
	v := url.Values{}
	v.Set("draw", strconv.Itoa(r.Draw))
	v.Set("start", strconv.Itoa(r.PageStart))
	v.Set("length", strconv.Itoa(r.PageSize))
	v.Set("search", r.SearchTerm)
	v.Set("ordering", r.Ordering)
	for _, key := range FilterKeys {
		if val := r.Filters[key]; val != "" {
			v.Set(key, val)
		}
	}
	if r.ShowSelectedOnly {
		v.Set("show_selected_only", "true")
	}
	if r.PriceSearch != nil {
		if b, err := json.Marshal(r.PriceSearch); err == nil {
			v.Set(PriceSearchParam, string(b))
		}
	}
	return v
}

// Ответ списка в формате DataTables
type ListResponse struct {
	Draw            int           `json:"draw"`
	RecordsTotal    int           `json:"recordsTotal"`
	RecordsFiltered *int          `json:"recordsFiltered,omitempty"`
	Data            []Procurement `json:"data"`
	Error           string        `json:"error,omitempty"`
}

// Статус торгов
type BiddingStatus string

const (
	BiddingNotStarted BiddingStatus = "not_started"
	BiddingInProgress BiddingStatus = "in_progress"
	BiddingSuccessful BiddingStatus = "successful"
	BiddingFailed     BiddingStatus = "failed"
	BiddingCancelled  BiddingStatus = "cancelled"
)

var biddingLabels = map[BiddingStatus]string{
	BiddingNotStarted: "未开始",
	BiddingInProgress: "进行中",
	BiddingSuccessful: "竞标成功",
	BiddingFailed:     "竞标失败",
	BiddingCancelled:  "已取消",
}

// BiddingStatuses в порядке вывода в селекте.
var BiddingStatuses = []BiddingStatus{
	BiddingNotStarted, BiddingInProgress, BiddingSuccessful, BiddingFailed, BiddingCancelled,
}

func (s BiddingStatus) Valid() bool {
	_, ok := biddingLabels[s]
	return ok
}

func (s BiddingStatus) Label() string {
	if l, ok := biddingLabels[s]; ok {
		return l
	}
	return string(s)
}

// Товарная позиция в предложении поставщика
type Commodity struct {
	ID            int     `db:"id" json:"id,omitempty"`
	Name          string  `db:"name" json:"name"`
	Specification string  `db:"specification" json:"specification"`
	Price         float64 `db:"price" json:"price"`
	Quantity      int     `db:"quantity" json:"quantity"`
	ProductURL    string  `db:"product_url" json:"product_url"`
}

func (c Commodity) Subtotal() float64 {
	return c.Price * float64(c.Quantity)
}

// Поставщик, привязанный к закупке
type Supplier struct {
	ID          int         `db:"id" json:"id"`
	Name        string      `db:"name" json:"name"`
	Source      string      `db:"source" json:"source"`
	Contact     string      `db:"contact" json:"contact"`
	StoreName   string      `db:"store_name" json:"store_name"`
	IsSelected  bool        `db:"is_selected" json:"is_selected"`
	TotalQuote  float64     `db:"-" json:"total_quote"`
	Commodities []Commodity `db:"-" json:"commodities"`
}

// Quote всегда пересчитывается из позиций, TotalQuote с сервера только для отображения.
func (s Supplier) Quote() float64 {
	var total float64
	for _, c := range s.Commodities {
		total += c.Subtotal()
	}
	return total
}

// Запись журнала примечаний, только добавление
type Remark struct {
	CreatedBy     string    `db:"created_by" json:"created_by"`
	RemarkContent string    `db:"remark_content" json:"remark_content"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// Ход закупки по выбранному лоту
type Progress struct {
	ProcurementID     int           `db:"procurement_id" json:"procurement_id"`
	ProcurementTitle  string        `db:"procurement_title" json:"procurement_title"`
	ProcurementNumber string        `db:"procurement_number" json:"procurement_number"`
	BiddingStatus     BiddingStatus `db:"bidding_status" json:"bidding_status"`
	ClientContact     string        `db:"client_contact" json:"client_contact"`
	ClientPhone       string        `db:"client_phone" json:"client_phone"`
	Cost              float64       `db:"cost" json:"cost"`
	TotalBudget       float64       `db:"-" json:"total_budget"`
	IsSelected        bool          `db:"is_selected" json:"is_selected"`
	SuppliersInfo     []Supplier    `db:"-" json:"suppliers_info"`
	RemarksHistory    []Remark      `db:"-" json:"remarks_history"`
}

// Тело add-supplier / update
type SupplierInput struct {
	Name        string      `json:"name"`
	Source      string      `json:"source"`
	Contact     string      `json:"contact"`
	StoreName   string      `json:"store_name"`
	IsSelected  bool        `json:"is_selected"`
	Commodities []Commodity `json:"commodities"`
}

type SupplierSelection struct {
	SupplierID int  `json:"supplier_id"`
	IsSelected bool `json:"is_selected"`
}

type NewRemark struct {
	RemarkContent string `json:"remark_content"`
	CreatedBy     string `json:"created_by"`
}

// Тело POST .../update/. Поля-указатели: nil = не менять.
type ProgressUpdate struct {
	BiddingStatus     *BiddingStatus      `json:"bidding_status,omitempty"`
	ClientContact     *string             `json:"client_contact,omitempty"`
	ClientPhone       *string             `json:"client_phone,omitempty"`
	Cost              *float64            `json:"cost,omitempty"`
	SupplierSelection []SupplierSelection `json:"supplier_selection,omitempty"`
	NewRemark         *NewRemark          `json:"new_remark,omitempty"`
}

// Единый конверт ответа на изменяющие запросы
type Envelope struct {
	Success      bool              `json:"success"`
	Message      string            `json:"message,omitempty"`
	Error        string            `json:"error,omitempty"`
	Errors       map[string]string `json:"errors,omitempty"`
	IsSelected   *bool             `json:"is_selected,omitempty"`
	ProjectOwner string            `json:"project_owner,omitempty"`
	ID           int               `json:"id,omitempty"`
}
