package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"emall/internal/dashboard/api"
	"emall/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T, h http.HandlerFunc) *api.Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := api.New(srv.URL, api.WithUsername("张三"))
	require.NoError(t, err)
	return c
}

func TestNewRejectsRelativeURL(t *testing.T) {
	_, err := api.New("/emall")
	require.Error(t, err)
}

func TestListProcurementsQuery(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/emall/procurements/", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "2", q.Get("draw"))
		assert.Equal(t, "25", q.Get("start"))
		assert.Equal(t, "25", q.Get("length"))
		assert.Equal(t, "学校", q.Get("search"))
		assert.Equal(t, "-publish_date", q.Get("ordering"))
		assert.Equal(t, "成都", q.Get("region"))
		assert.Equal(t, "true", q.Get("show_selected_only"))
		assert.False(t, q.Has("project_title"))
		w.Write([]byte(`{"draw":2,"recordsTotal":1,"data":[{"id":9,"project_title":"办公用品"}]}`))
	})

	resp, err := c.ListProcurements(context.Background(), models.ListRequest{
		Draw:             2,
		PageStart:        25,
		PageSize:         25,
		SearchTerm:       "学校",
		Ordering:         "-publish_date",
		Filters:          map[string]string{models.FilterRegion: "成都"},
		ShowSelectedOnly: true,
	})
	require.NoError(t, err)
	require.Equal(t, 2, resp.Draw)
	require.Nil(t, resp.RecordsFiltered)
	require.Equal(t, 9, resp.Data[0].ID)
}

func TestMutationHeaders(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			http.SetCookie(w, &http.Cookie{Name: "csrftoken", Value: "tok%2B1", Path: "/"})
			w.Write([]byte(`{"draw":1,"recordsTotal":0,"data":[]}`))
		case http.MethodPost:
			assert.Equal(t, "/emall/purchasing/procurement/4/select/", r.URL.Path)
			assert.Equal(t, "tok+1", r.Header.Get("X-CSRFToken"))
			assert.Equal(t, "%E5%BC%A0%E4%B8%89", r.Header.Get("X-Username"))
			body, _ := io.ReadAll(r.Body)
			assert.JSONEq(t, `{"is_selected":true}`, string(body))
			w.Write([]byte(`{"success":true,"is_selected":true,"project_owner":"张三"}`))
		}
	})

	_, err := c.ListProcurements(context.Background(), models.ListRequest{Draw: 1, PageSize: 25})
	require.NoError(t, err)

	env, err := c.SetSelection(context.Background(), 4, true)
	require.NoError(t, err)
	require.True(t, *env.IsSelected)
	require.Equal(t, "张三", env.ProjectOwner)
}

func TestExplicitCSRFTokenAndHTTPClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "meta-token", r.Header.Get("X-CSRFToken"))
		w.Write([]byte(`{"success":true,"is_selected":false}`))
	}))
	t.Cleanup(srv.Close)

	hc := &http.Client{Timeout: 5 * time.Second}
	c, err := api.New(srv.URL, api.WithHTTPClient(hc), api.WithCSRFToken("meta-token"))
	require.NoError(t, err)
	require.NotNil(t, hc.Jar)

	_, err = c.SetSelection(context.Background(), 4, false)
	require.NoError(t, err)
}

func TestSuccessFalseIsBackendError(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":false,"error":"locked"}`))
	})

	_, err := c.SetSelection(context.Background(), 4, true)
	var be *api.BackendError
	require.ErrorAs(t, err, &be)
	require.Equal(t, "locked", be.Message)
	require.Equal(t, "locked", api.Message(err, "操作失败"))
	require.False(t, api.IsTransport(err))
}

func TestStatusErrorCarriesFields(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(models.Envelope{
			Error:  "供应商名称为必填项",
			Errors: map[string]string{"name": "供应商名称为必填项"},
		})
	})

	_, err := c.AddSupplier(context.Background(), 1, models.SupplierInput{})
	var be *api.BackendError
	require.ErrorAs(t, err, &be)
	require.Equal(t, http.StatusBadRequest, be.Status)
	require.Equal(t, "供应商名称为必填项", be.Fields["name"])
}

func TestMalformedResponse(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>oops</html>`))
	})

	_, err := c.GetProcurement(context.Background(), 1)
	var be *api.BackendError
	require.ErrorAs(t, err, &be)
	require.True(t, be.Malformed)
	require.Equal(t, "加载失败", api.Message(err, "加载失败"))
}

func TestEmptySuccessBodyIsMalformed(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	p, err := c.GetProgress(context.Background(), 3)
	require.Nil(t, p)
	var be *api.BackendError
	require.ErrorAs(t, err, &be)
	require.True(t, be.Malformed)
	require.Equal(t, http.StatusOK, be.Status)

	_, err = c.SetSelection(context.Background(), 3, true)
	require.ErrorAs(t, err, &be)
	require.True(t, be.Malformed)
}

func TestTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	c, err := api.New(srv.URL)
	require.NoError(t, err)

	_, err = c.GetProgress(context.Background(), 1)
	require.True(t, api.IsTransport(err))
	require.Equal(t, "网络错误，请重试", api.Message(err, "网络错误，请重试"))

	var te *api.TransportError
	require.True(t, errors.As(err, &te))
	require.Equal(t, "/emall/purchasing/procurement/1/progress/", te.Path)
}

func TestDetailArraysNeverNil(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":3,"commodity_names":null}`))
	})

	d, err := c.GetProcurement(context.Background(), 3)
	require.NoError(t, err)
	require.NotNil(t, d.CommodityNames)
	require.NotNil(t, d.DownloadFiles)
}

func TestSupplierEndpoints(t *testing.T) {
	var calls []string
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.Path)
		w.Write([]byte(`{"success":true}`))
	})
	ctx := context.Background()

	_, err := c.UpdateSupplier(ctx, 8, models.SupplierInput{Name: "x"})
	require.NoError(t, err)
	_, err = c.DeleteSupplier(ctx, 8)
	require.NoError(t, err)
	_, err = c.UpdateProgress(ctx, 3, models.ProgressUpdate{})
	require.NoError(t, err)

	require.Equal(t, []string{
		"PUT /emall/purchasing/supplier/8/update/",
		"DELETE /emall/purchasing/supplier/8/delete/",
		"POST /emall/purchasing/procurement/3/update/",
	}, calls)
}
