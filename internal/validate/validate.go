// Package validate содержит правила проверки поставщиков и товаров.
// Одни и те же правила применяются в форме дашборда до отправки и на сервере.
package validate

import (
	"fmt"
	"math"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"emall/models"
)

const (
	MaxPrice    = 999999999
	MaxQuantity = 999999
)

var (
	phoneRe = regexp.MustCompile(`^1[3-9]\d{9}$`)
	emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

// Errors сопоставляет поле с сообщением. Ключи товаров: commodities[i].field.
type Errors map[string]string

// Error отдаёт первое сообщение в порядке полей формы.
func (e Errors) Error() string {
	if len(e) == 0 {
		return ""
	}
	for _, key := range []string{"name", "contact", "store_name", "source", "commodities", "bidding_status", "cost", "remark_content", "created_by"} {
		if msg, ok := e[key]; ok {
			return msg
		}
	}
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return e[keys[0]]
}

func (e Errors) orNil() Errors {
	if len(e) == 0 {
		return nil
	}
	return e
}

// Supplier проверяет карточку поставщика вместе с позициями.
func Supplier(in models.SupplierInput) Errors {
	errs := Errors{}

	name := strings.TrimSpace(in.Name)
	switch n := utf8.RuneCountInString(name); {
	case n == 0:
		errs["name"] = "供应商名称为必填项"
	case n < 2 || n > 100:
		errs["name"] = "供应商名称长度应在2-100个字符之间"
	}

	if c := strings.TrimSpace(in.Contact); c != "" && !phoneRe.MatchString(c) && !emailRe.MatchString(c) {
		errs["contact"] = "请输入有效的手机号码或邮箱地址"
	}
	if utf8.RuneCountInString(in.StoreName) > 100 {
		errs["store_name"] = "店铺名称不能超过100个字符"
	}
	if utf8.RuneCountInString(in.Source) > 50 {
		errs["source"] = "获取渠道不能超过50个字符"
	}

	if len(in.Commodities) == 0 {
		errs["commodities"] = "请至少添加一个商品"
	}
	for i, c := range in.Commodities {
		for field, msg := range Commodity(c) {
			errs[fmt.Sprintf("commodities[%d].%s", i, field)] = fmt.Sprintf("第%d个商品：%s", i+1, msg)
		}
	}
	return errs.orNil()
}

// Commodity проверяет одну товарную позицию.
func Commodity(c models.Commodity) Errors {
	errs := Errors{}

	switch n := utf8.RuneCountInString(strings.TrimSpace(c.Name)); {
	case n == 0:
		errs["name"] = "商品名称为必填项"
	case n > 200:
		errs["name"] = "商品名称不能超过200个字符"
	}

	switch {
	case !(c.Price > 0):
		errs["price"] = "商品价格必须大于0"
	case c.Price > MaxPrice:
		errs["price"] = "商品价格超出合理范围"
	}

	switch {
	case c.Quantity <= 0:
		errs["quantity"] = "商品数量必须大于0"
	case c.Quantity > MaxQuantity:
		errs["quantity"] = "商品数量超出合理范围"
	}

	if utf8.RuneCountInString(c.Specification) > 500 {
		errs["specification"] = "商品规格不能超过500个字符"
	}
	if c.ProductURL != "" && !validURL(c.ProductURL) {
		errs["product_url"] = "请输入有效的商品链接"
	}
	return errs.orNil()
}

func validURL(s string) bool {
	u, err := url.Parse(strings.TrimSpace(s))
	if err != nil || u.Scheme == "" {
		return false
	}
	return u.Host != "" || u.Opaque != ""
}

// Remark проверяет новое примечание перед добавлением.
func Remark(content, author string) Errors {
	errs := Errors{}
	if strings.TrimSpace(content) == "" {
		errs["remark_content"] = "请输入备注内容"
	}
	if strings.TrimSpace(author) == "" {
		errs["created_by"] = "请输入创建人"
	}
	return errs.orNil()
}

// Progress проверяет поля формы хода закупки, nil-поля не проверяются.
func Progress(upd models.ProgressUpdate) Errors {
	errs := Errors{}
	if upd.BiddingStatus != nil && !upd.BiddingStatus.Valid() {
		errs["bidding_status"] = "无效的竞标状态"
	}
	if upd.Cost != nil {
		switch cost := *upd.Cost; {
		case math.IsNaN(cost), math.IsInf(cost, 0):
			errs["cost"] = "请输入有效的成本"
		case cost < 0:
			errs["cost"] = "成本不能为负数"
		}
	}
	return errs.orNil()
}
