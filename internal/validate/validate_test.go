package validate_test

import (
	"math"
	"strings"
	"testing"

	"emall/internal/validate"
	"emall/models"

	"github.com/stretchr/testify/require"
)

func validSupplier() models.SupplierInput {
	return models.SupplierInput{
		Name:    "成都办公用品有限公司",
		Contact: "13800138000",
		Commodities: []models.Commodity{
			{Name: "A4纸", Price: 25.5, Quantity: 10, ProductURL: "https://shop.example.com/a4"},
		},
	}
}

func TestSupplierValid(t *testing.T) {
	require.Nil(t, validate.Supplier(validSupplier()))

	in := validSupplier()
	in.Contact = "sales@example.com"
	require.Nil(t, validate.Supplier(in))

	in.Contact = ""
	require.Nil(t, validate.Supplier(in))
}

func TestSupplierName(t *testing.T) {
	in := validSupplier()
	in.Name = "  "
	errs := validate.Supplier(in)
	require.Equal(t, "供应商名称为必填项", errs["name"])
	require.Contains(t, errs.Error(), "供应商名称")

	in.Name = "甲"
	require.Equal(t, "供应商名称长度应在2-100个字符之间", validate.Supplier(in)["name"])

	in.Name = strings.Repeat("商", 101)
	require.Contains(t, validate.Supplier(in), "name")
}

func TestSupplierFields(t *testing.T) {
	in := validSupplier()
	in.Contact = "12345"
	in.StoreName = strings.Repeat("店", 101)
	in.Source = strings.Repeat("x", 51)
	in.Commodities = nil

	errs := validate.Supplier(in)
	require.Equal(t, "请输入有效的手机号码或邮箱地址", errs["contact"])
	require.Equal(t, "店铺名称不能超过100个字符", errs["store_name"])
	require.Equal(t, "获取渠道不能超过50个字符", errs["source"])
	require.Equal(t, "请至少添加一个商品", errs["commodities"])
	require.Equal(t, "请输入有效的手机号码或邮箱地址", errs.Error())
}

func TestSupplierCommodityErrorsAreIndexed(t *testing.T) {
	in := validSupplier()
	in.Commodities = append(in.Commodities, models.Commodity{Name: "笔", Price: 0, Quantity: 1})

	errs := validate.Supplier(in)
	require.Len(t, errs, 1)
	require.Equal(t, "第2个商品：商品价格必须大于0", errs["commodities[1].price"])
}

func TestCommodity(t *testing.T) {
	tests := []struct {
		name  string
		in    models.Commodity
		field string
		msg   string
	}{
		{"empty name", models.Commodity{Price: 1, Quantity: 1}, "name", "商品名称为必填项"},
		{"long name", models.Commodity{Name: strings.Repeat("a", 201), Price: 1, Quantity: 1}, "name", "商品名称不能超过200个字符"},
		{"zero price", models.Commodity{Name: "a", Quantity: 1}, "price", "商品价格必须大于0"},
		{"huge price", models.Commodity{Name: "a", Price: 1e9, Quantity: 1}, "price", "商品价格超出合理范围"},
		{"nan price", models.Commodity{Name: "纸", Price: math.NaN(), Quantity: 1}, "price", "商品价格必须大于0"},
		{"inf price", models.Commodity{Name: "纸", Price: math.Inf(1), Quantity: 1}, "price", "商品价格超出合理范围"},
		{"zero quantity", models.Commodity{Name: "a", Price: 1}, "quantity", "商品数量必须大于0"},
		{"huge quantity", models.Commodity{Name: "a", Price: 1, Quantity: 1000000}, "quantity", "商品数量超出合理范围"},
		{"long spec", models.Commodity{Name: "a", Price: 1, Quantity: 1, Specification: strings.Repeat("规", 501)}, "specification", "商品规格不能超过500个字符"},
		{"bad url", models.Commodity{Name: "a", Price: 1, Quantity: 1, ProductURL: "shop/a4"}, "product_url", "请输入有效的商品链接"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := validate.Commodity(tt.in)
			require.Equal(t, tt.msg, errs[tt.field])
		})
	}

	require.Nil(t, validate.Commodity(models.Commodity{Name: "a", Price: 999999999, Quantity: 999999}))
}

func TestRemark(t *testing.T) {
	require.Nil(t, validate.Remark("预算已确认", "张三"))
	require.Equal(t, "请输入备注内容", validate.Remark(" ", "张三").Error())
	require.Equal(t, "请输入创建人", validate.Remark("预算已确认", "").Error())
}

func TestProgress(t *testing.T) {
	bad := models.BiddingStatus("won")
	cost := -1.0
	errs := validate.Progress(models.ProgressUpdate{BiddingStatus: &bad, Cost: &cost})
	require.Equal(t, "无效的竞标状态", errs["bidding_status"])
	require.Equal(t, "成本不能为负数", errs["cost"])
	require.Equal(t, "无效的竞标状态", errs.Error())

	ok := models.BiddingSuccessful
	require.Nil(t, validate.Progress(models.ProgressUpdate{BiddingStatus: &ok}))
	require.Nil(t, validate.Progress(models.ProgressUpdate{}))

	for _, v := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		errs := validate.Progress(models.ProgressUpdate{Cost: &v})
		require.Equal(t, "请输入有效的成本", errs["cost"], "%v", v)
	}
}
