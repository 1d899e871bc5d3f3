package detail_test

import (
	"context"
	"testing"

	"emall/internal/dashboard/api"
	"emall/internal/dashboard/detail"
	"emall/internal/dashboard/modalstack"
	"emall/internal/dashboard/notify"
	"emall/models"

	"github.com/stretchr/testify/require"
)

type MockBackend struct {
	GetProcurementFunc func(ctx context.Context, id int) (*models.ProcurementDetail, error)
}

func (m *MockBackend) GetProcurement(ctx context.Context, id int) (*models.ProcurementDetail, error) {
	return m.GetProcurementFunc(ctx, id)
}

func record(id int) *models.ProcurementDetail {
	return &models.ProcurementDetail{
		Procurement: models.Procurement{
			ID:                id,
			ProjectTitle:      "办公用品采购",
			PurchasingUnit:    "成都市第一中学",
			TotalPriceControl: "1.5万元",
			PublishDate:       "2024-06-01",
			URL:               "https://emall.example/p/1",
		},
		CommodityNames:     []string{"打印纸", "签字笔", "文件夹"},
		PurchaseQuantities: []string{"10箱", "200支"},
	}
}

func TestRenderPadsUnequalArrays(t *testing.T) {
	v, err := detail.Render(record(1))
	require.NoError(t, err)
	require.Equal(t, detail.Loaded, v.Status)
	require.Equal(t, "办公用品采购", v.Title)
	require.Equal(t, "https://emall.example/p/1", v.SourceURL)

	require.Len(t, v.Items, 3)
	require.Equal(t, "文件夹", v.Items[2].Name)
	require.Equal(t, "-", v.Items[2].Quantity)
	require.Equal(t, "200支", v.Items[1].Quantity)
	require.Equal(t, "-", v.Items[0].Brand)

	require.Equal(t, detail.Field{Label: "预算控制", Value: "15000.00"}, v.Basic[2])
	require.Equal(t, detail.Field{Label: "项目编号", Value: "-"}, v.Basic[1])
	require.Equal(t, "2024-06-01 00:00:00", v.Timeline[0].Value)
	require.Equal(t, "-", v.Timeline[2].Value)
}

func TestRenderDefaults(t *testing.T) {
	v, err := detail.Render(&models.ProcurementDetail{})
	require.NoError(t, err)
	require.Equal(t, detail.DefaultTitle, v.Title)
	require.Equal(t, "#", v.SourceURL)
	require.Empty(t, v.Items)
}

func TestOpenShowsLoadingWhileFetching(t *testing.T) {
	stack := modalstack.New()
	var c *detail.Controller
	c = detail.New(&MockBackend{
		GetProcurementFunc: func(ctx context.Context, id int) (*models.ProcurementDetail, error) {
			v := c.View()
			require.Equal(t, detail.Loading, v.Status)
			require.Equal(t, detail.LoadingTitle, v.Title)
			require.Equal(t, 1, stack.Len())
			return record(id), nil
		},
	}, stack, nil, nil)

	v, err := c.Open(context.Background(), 5)
	require.NoError(t, err)
	require.Equal(t, detail.Loaded, v.Status)
	require.Equal(t, 5, c.View().ProcurementID)

	c.Close()
	require.Equal(t, detail.Closed, c.View().Status)
	require.Equal(t, 0, stack.Len())
}

func TestOpenFailureShowsBackendMessage(t *testing.T) {
	var rec notify.Recorder
	c := detail.New(&MockBackend{
		GetProcurementFunc: func(ctx context.Context, id int) (*models.ProcurementDetail, error) {
			return nil, &api.BackendError{Status: 404, Message: "采购项目不存在"}
		},
	}, nil, &rec, nil)

	v, err := c.Open(context.Background(), 9)
	require.Error(t, err)
	require.Equal(t, detail.Failed, v.Status)
	require.Equal(t, detail.LoadFailedText, v.ErrorTitle)
	require.Equal(t, "采购项目不存在", v.ErrorMessage)
	require.Len(t, rec.Messages(notify.Error), 1)
}

func TestOpenFailureFallbackMessage(t *testing.T) {
	c := detail.New(&MockBackend{
		GetProcurementFunc: func(ctx context.Context, id int) (*models.ProcurementDetail, error) {
			return nil, &api.BackendError{Malformed: true, Message: "响应格式错误"}
		},
	}, nil, nil, nil)

	v, _ := c.Open(context.Background(), 9)
	require.Equal(t, "无法加载项目详情，请稍后重试", v.ErrorMessage)
}

func TestLateResponseAfterCloseIsDiscarded(t *testing.T) {
	var c *detail.Controller
	c = detail.New(&MockBackend{
		GetProcurementFunc: func(ctx context.Context, id int) (*models.ProcurementDetail, error) {
			c.Close()
			return record(id), nil
		},
	}, nil, nil, nil)

	_, err := c.Open(context.Background(), 1)
	require.ErrorIs(t, err, detail.ErrStale)
	require.Equal(t, detail.Closed, c.View().Status)
}

func TestReopenDiscardsEarlierResponse(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	c := detail.New(&MockBackend{
		GetProcurementFunc: func(ctx context.Context, id int) (*models.ProcurementDetail, error) {
			if id == 1 {
				close(started)
				<-release
			}
			return record(id), nil
		},
	}, nil, nil, nil)

	done := make(chan error, 1)
	go func() {
		_, err := c.Open(context.Background(), 1)
		done <- err
	}()
	<-started

	v, err := c.Open(context.Background(), 2)
	require.NoError(t, err)
	require.Equal(t, 2, v.ProcurementID)

	close(release)
	require.ErrorIs(t, <-done, detail.ErrStale)
	require.Equal(t, 2, c.View().ProcurementID)
}

func TestRenderPanicIsRecovered(t *testing.T) {
	c := detail.New(&MockBackend{
		GetProcurementFunc: func(ctx context.Context, id int) (*models.ProcurementDetail, error) {
			return record(id), nil
		},
	}, nil, nil, nil)
	c.SetRenderer(func(d *models.ProcurementDetail) (detail.View, error) {
		panic("bad template")
	})

	v, err := c.Open(context.Background(), 1)
	require.Error(t, err)
	require.Equal(t, detail.Failed, v.Status)
	require.Equal(t, detail.RenderErrorText, v.ErrorTitle)
	require.Equal(t, "bad template", v.ErrorMessage)
}

func TestRenderNilRecord(t *testing.T) {
	_, err := detail.Render(nil)
	require.Error(t, err)
}
