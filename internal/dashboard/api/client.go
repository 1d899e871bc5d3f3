// Package api реализует HTTP-клиент REST бэкенда закупок.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"emall/internal/format"
	"emall/internal/logger"
	"emall/models"

	"go.uber.org/zap"
)

const defaultTimeout = 30 * time.Second

type Client struct {
	base     *url.URL
	http     *http.Client
	token    string
	username string
	log      *zap.Logger
}

type Option func(*Client)

// WithHTTPClient подменяет http.Client. Если у него нет cookie jar, клиент заводит свой.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithCSRFToken задаёт токен явно, например из meta-тега страницы.
func WithCSRFToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithUsername передаёт оператора в X-Username.
func WithUsername(name string) Option {
	return func(c *Client) { c.username = name }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.log = l }
}

func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse backend url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("backend url %q must be absolute", baseURL)
	}

	c := &Client{base: u}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: defaultTimeout}
	}
	if c.http.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, err
		}
		c.http.Jar = jar
	}
	c.log = logger.OrNop(c.log)
	return c, nil
}

func (c *Client) ListProcurements(ctx context.Context, req models.ListRequest) (*models.ListResponse, error) {
	var resp models.ListResponse
	if err := c.do(ctx, http.MethodGet, "/emall/procurements/", req.Values(), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) GetProcurement(ctx context.Context, id int) (*models.ProcurementDetail, error) {
	var d models.ProcurementDetail
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/emall/procurements/%d/", id), nil, nil, &d); err != nil {
		return nil, err
	}
	d.Normalize()
	return &d, nil
}

// SetSelection отправляет желаемое состояние выбора и возвращает подтверждённое сервером.
func (c *Client) SetSelection(ctx context.Context, id int, desired bool) (*models.Envelope, error) {
	body := map[string]bool{"is_selected": desired}
	return c.mutate(ctx, http.MethodPost, fmt.Sprintf("/emall/purchasing/procurement/%d/select/", id), body)
}

func (c *Client) GetProgress(ctx context.Context, id int) (*models.Progress, error) {
	var p models.Progress
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/emall/purchasing/procurement/%d/progress/", id), nil, nil, &p); err != nil {
		return nil, err
	}
	if p.SuppliersInfo == nil {
		p.SuppliersInfo = []models.Supplier{}
	}
	if p.RemarksHistory == nil {
		p.RemarksHistory = []models.Remark{}
	}
	return &p, nil
}

func (c *Client) UpdateProgress(ctx context.Context, id int, upd models.ProgressUpdate) (*models.Envelope, error) {
	return c.mutate(ctx, http.MethodPost, fmt.Sprintf("/emall/purchasing/procurement/%d/update/", id), upd)
}

func (c *Client) AddSupplier(ctx context.Context, procurementID int, in models.SupplierInput) (*models.Envelope, error) {
	return c.mutate(ctx, http.MethodPost, fmt.Sprintf("/emall/purchasing/procurement/%d/add-supplier/", procurementID), in)
}

func (c *Client) UpdateSupplier(ctx context.Context, supplierID int, in models.SupplierInput) (*models.Envelope, error) {
	return c.mutate(ctx, http.MethodPut, fmt.Sprintf("/emall/purchasing/supplier/%d/update/", supplierID), in)
}

func (c *Client) DeleteSupplier(ctx context.Context, supplierID int) (*models.Envelope, error) {
	return c.mutate(ctx, http.MethodDelete, fmt.Sprintf("/emall/purchasing/supplier/%d/delete/", supplierID), nil)
}

// mutate выполняет изменяющий запрос; {success:false} превращается в *BackendError.
func (c *Client) mutate(ctx context.Context, method, path string, body any) (*models.Envelope, error) {
	var env models.Envelope
	if err := c.do(ctx, method, path, nil, body, &env); err != nil {
		return nil, err
	}
	if !env.Success {
		return nil, &BackendError{Status: http.StatusOK, Message: envelopeMessage(env), Fields: env.Errors}
	}
	return &env, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := *c.base
	u.Path = c.base.Path + path
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.username != "" {
		req.Header.Set("X-Username", url.QueryEscape(c.username))
	}
	if method != http.MethodGet {
		if token := c.csrfToken(); token != "" {
			req.Header.Set("X-CSRFToken", token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &TransportError{Method: method, Path: path, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Method: method, Path: path, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		be := &BackendError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		var env models.Envelope
		if json.Unmarshal(data, &env) == nil {
			if msg := envelopeMessage(env); msg != "" {
				be.Message = msg
			}
			be.Fields = env.Errors
		}
		c.log.Warn("backend error",
			zap.String("method", method), zap.String("path", path),
			zap.Int("status", resp.StatusCode), zap.String("message", be.Message))
		return be
	}

	if out == nil {
		return nil
	}
	if len(bytes.TrimSpace(data)) == 0 {
		c.log.Warn("empty response", zap.String("path", path), zap.Int("status", resp.StatusCode))
		return &BackendError{Status: resp.StatusCode, Message: "响应格式错误", Malformed: true, Err: errEmptyBody}
	}
	if err := json.Unmarshal(data, out); err != nil {
		c.log.Warn("malformed response", zap.String("path", path), zap.Error(err))
		return &BackendError{Status: resp.StatusCode, Message: "响应格式错误", Malformed: true, Err: err}
	}
	return nil
}

// csrfToken: явно заданный токен, иначе cookie csrftoken из jar.
func (c *Client) csrfToken() string {
	var parts []string
	for _, ck := range c.http.Jar.Cookies(c.base) {
		parts = append(parts, ck.Name+"="+ck.Value)
	}
	return format.CSRFToken(c.token, "", strings.Join(parts, "; "))
}

func envelopeMessage(env models.Envelope) string {
	if env.Error != "" {
		return env.Error
	}
	return env.Message
}

// ParseID разбирает идентификатор из аргументов командной строки и путей.
func ParseID(s string) (int, error) {
	id, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}
