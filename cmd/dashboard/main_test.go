package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"emall/internal/config"
	"emall/internal/dashboard/columns"
	"emall/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

func backend(t *testing.T) *config.Config {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /emall/procurements/", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "成都", r.URL.Query().Get("region"))
		json.NewEncoder(w).Encode(models.ListResponse{Draw: 1, RecordsTotal: 1, Data: []models.Procurement{
			{ID: 3, ProjectTitle: "办公用品", PublishDate: "2024-06-01", QuoteEndTime: "2020-01-01", IsSelected: true},
		}})
	})
	mux.HandleFunc("GET /emall/purchasing/procurement/3/progress/", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(models.Progress{
			ProcurementID:    3,
			ProcurementTitle: "办公用品",
			BiddingStatus:    models.BiddingInProgress,
			Cost:             100,
			TotalBudget:      1000,
			SuppliersInfo: []models.Supplier{{ID: 1, Name: "晨光文具", IsSelected: true,
				Commodities: []models.Commodity{{Name: "笔", Price: 2, Quantity: 300}}}},
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return &config.Config{BackendURL: srv.URL, Username: "张三"}
}

func TestListCommand(t *testing.T) {
	cfg := backend(t)
	var out, errOut bytes.Buffer

	err := run(context.Background(), cfg, zap.NewNop(), []string{"list", "-region", "成都"}, &out, &errOut)
	require.NoError(t, err)
	require.Contains(t, out.String(), "[x] 3")
	require.Contains(t, out.String(), "(expired)")
	require.Contains(t, out.String(), "detail,progress")
}

func TestExportCommand(t *testing.T) {
	cfg := backend(t)
	path := filepath.Join(t.TempDir(), "out.xlsx")
	var out bytes.Buffer

	err := run(context.Background(), cfg, zap.NewNop(), []string{"export", "-region", "成都", "-out", path}, &out, &out)
	require.NoError(t, err)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("采购项目")
	require.NoError(t, err)
	require.Len(t, rows, 2)
}

func TestProgressCommand(t *testing.T) {
	cfg := backend(t)
	var out bytes.Buffer

	err := run(context.Background(), cfg, zap.NewNop(), []string{"progress", "3"}, &out, &out)
	require.NoError(t, err)
	require.Contains(t, out.String(), "晨光文具")
	require.Contains(t, out.String(), "¥600.00")
	require.Contains(t, out.String(), "50.00%")
}

func TestAddSupplierValidatesBeforeRequest(t *testing.T) {
	cfg := backend(t)
	var out, errOut bytes.Buffer

	err := run(context.Background(), cfg, zap.NewNop(), []string{"add-supplier", "-item", "笔:2:10", "3"}, &out, &errOut)
	require.Error(t, err)
	require.Contains(t, errOut.String(), "供应商名称为必填项")
}

func TestParseOrder(t *testing.T) {
	orders, err := parseOrder(columns.Default, "-publish_date, project_title")
	require.NoError(t, err)
	require.Equal(t, []columns.Order{
		{Column: columns.ColPublishDate, Desc: true},
		{Column: columns.ColProjectTitle},
	}, orders)

	_, err = parseOrder(columns.Default, "color")
	require.Error(t, err)
}

func TestListBudgetFilter(t *testing.T) {
	var search string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		search = r.URL.Query().Get(models.PriceSearchParam)
		json.NewEncoder(w).Encode(models.ListResponse{Draw: 1, Data: []models.Procurement{}})
	}))
	t.Cleanup(srv.Close)
	cfg := &config.Config{BackendURL: srv.URL}
	var out, errOut bytes.Buffer

	err := run(context.Background(), cfg, zap.NewNop(), []string{"list", "-budget", "1万元..5万元"}, &out, &errOut)
	require.NoError(t, err)
	require.JSONEq(t, `{"operator":"range","value":0,"min":10000,"max":50000}`, search)

	err = run(context.Background(), cfg, zap.NewNop(), []string{"list", "-budget", "about 5"}, &out, &errOut)
	require.Error(t, err)
}

func TestParseBudget(t *testing.T) {
	tests := []struct {
		in   string
		want models.PriceSearch
	}{
		{">=12万元", models.PriceSearch{Operator: models.PriceGTE, Value: 120000}},
		{"<5000", models.PriceSearch{Operator: models.PriceLT, Value: 5000}},
		{"=3500元", models.PriceSearch{Operator: models.PriceEQ, Value: 3500}},
		{"1000..50000", models.PriceSearch{Operator: models.PriceRange, Min: 1000, Max: 50000}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseBudget(tt.in)
			require.NoError(t, err)
			require.Equal(t, tt.want, *got)
		})
	}

	for _, bad := range []string{"12万元", ">NaN", "1000..", "~5"} {
		_, err := parseBudget(bad)
		require.Error(t, err, bad)
	}
}

func TestParseItem(t *testing.T) {
	c, err := parseItem("打印纸:25.5:4")
	require.NoError(t, err)
	require.Equal(t, models.Commodity{Name: "打印纸", Price: 25.5, Quantity: 4}, c)

	_, err = parseItem("打印纸:x:4")
	require.Error(t, err)
}

func TestUnknownCommand(t *testing.T) {
	var out bytes.Buffer
	err := run(context.Background(), &config.Config{BackendURL: "http://localhost"}, zap.NewNop(), []string{"frobnicate"}, &out, &out)
	require.Error(t, err)
	require.Contains(t, out.String(), "usage:")
}
