package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"emall/internal/format"
	"emall/models"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrNotSelected = errors.New("procurement is not selected")
)

type Storage struct {
	db *sqlx.DB
}

func NewStorage(db *sqlx.DB) *Storage {
	return &Storage{db: db}
}

func (s *Storage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Storage) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Закупки (procurement_emall)

const procurementColumns = `
        p.id,
        COALESCE(p.project_title, '') AS project_title,
        COALESCE(p.project_number, '') AS project_number,
        COALESCE(p.purchasing_unit, '') AS purchasing_unit,
        COALESCE(p.region, '') AS region,
        COALESCE(p.url, '') AS url,
        COALESCE(p.total_price_control, '') AS total_price_control,
        COALESCE(p.publish_date, '') AS publish_date,
        COALESCE(p.quote_start_time, '') AS quote_start_time,
        COALESCE(p.quote_end_time, '') AS quote_end_time,
        COALESCE(pp.is_selected, FALSE) AS is_selected`

const procurementFrom = `
    FROM procurement_emall p
    LEFT JOIN procurement_purchasing pp ON pp.procurement_id = p.id`

func (s *Storage) ListProcurements(ctx context.Context, q ListQuery) (*ListResult, error) {
	where, args := q.where()

	res := &ListResult{Rows: []models.Procurement{}}
	if err := s.db.GetContext(ctx, &res.Total, `SELECT COUNT(*) FROM procurement_emall`); err != nil {
		return nil, err
	}
	if err := s.db.GetContext(ctx, &res.Filtered, `SELECT COUNT(*)`+procurementFrom+where, args...); err != nil {
		return nil, err
	}

	query := `SELECT` + procurementColumns + procurementFrom + where + q.orderBy()
	if q.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", q.Limit)
	}
	if q.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", q.Offset)
	}

	if err := s.db.SelectContext(ctx, &res.Rows, query, args...); err != nil {
		return nil, err
	}
	return res, nil
}

type detailRow struct {
	models.Procurement
	CommodityNames        pq.StringArray `db:"commodity_names"`
	ParameterRequirements pq.StringArray `db:"parameter_requirements"`
	PurchaseQuantities    pq.StringArray `db:"purchase_quantities"`
	ControlAmounts        pq.StringArray `db:"control_amounts"`
	SuggestedBrands       pq.StringArray `db:"suggested_brands"`
	BusinessRequirements  pq.StringArray `db:"business_requirements"`
	DownloadFiles         pq.StringArray `db:"download_files"`
}

func (s *Storage) GetProcurement(ctx context.Context, id int) (*models.ProcurementDetail, error) {
	var row detailRow
	query := `SELECT` + procurementColumns + `,
        p.commodity_names, p.parameter_requirements, p.purchase_quantities,
        p.control_amounts, p.suggested_brands, p.business_requirements, p.download_files` +
		procurementFrom + ` WHERE p.id = $1`
	if err := s.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	d := &models.ProcurementDetail{
		Procurement:           row.Procurement,
		CommodityNames:        row.CommodityNames,
		ParameterRequirements: row.ParameterRequirements,
		PurchaseQuantities:    row.PurchaseQuantities,
		ControlAmounts:        row.ControlAmounts,
		SuggestedBrands:       row.SuggestedBrands,
		BusinessRequirements:  row.BusinessRequirements,
		DownloadFiles:         row.DownloadFiles,
	}
	d.Normalize()
	return d, nil
}

// InsertProcurement нужен для загрузки данных краулера и для отладки.
func (s *Storage) InsertProcurement(ctx context.Context, d *models.ProcurementDetail) error {
	n := normalize(d.Procurement)
	query := `
        INSERT INTO procurement_emall
            (project_title, project_number, purchasing_unit, region, url, total_price_control,
             publish_date, quote_start_time, quote_end_time,
             commodity_names, parameter_requirements, purchase_quantities, control_amounts,
             suggested_brands, business_requirements, download_files,
             total_price_num, publish_at, quote_start_at, quote_end_at, normalized)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16,
                $17, $18, $19, $20, TRUE)
        RETURNING id`
	return s.db.QueryRowContext(ctx, query,
		d.ProjectTitle, d.ProjectNumber, d.PurchasingUnit, d.Region, d.URL, d.TotalPriceControl,
		d.PublishDate, d.QuoteStartTime, d.QuoteEndTime,
		pq.Array(d.CommodityNames), pq.Array(d.ParameterRequirements), pq.Array(d.PurchaseQuantities),
		pq.Array(d.ControlAmounts), pq.Array(d.SuggestedBrands), pq.Array(d.BusinessRequirements),
		pq.Array(d.DownloadFiles),
		n.Price, n.PublishAt, n.QuoteStart, n.QuoteEnd).
		Scan(&d.ID)
}

// Выбор закупки (procurement_purchasing)

// SetSelection выставляет флаг выбора; desired == nil переключает текущее значение.
func (s *Storage) SetSelection(ctx context.Context, procurementID int, desired *bool, user string) (*Selection, error) {
	sel := &Selection{}
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var exists bool
		if err := tx.GetContext(ctx, &exists,
			`SELECT EXISTS(SELECT 1 FROM procurement_emall WHERE id = $1)`, procurementID); err != nil {
			return err
		}
		if !exists {
			return ErrNotFound
		}

		var current bool
		err := tx.GetContext(ctx, &current,
			`SELECT is_selected FROM procurement_purchasing WHERE procurement_id = $1 FOR UPDATE`, procurementID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}

		next := !current
		if desired != nil {
			next = *desired
		}
		owner := DefaultOwner
		if next {
			owner = user
		}

		query := `
            INSERT INTO procurement_purchasing (procurement_id, is_selected, project_owner, selected_at)
            VALUES ($1, $2, $3, CASE WHEN $2 THEN NOW() END)
            ON CONFLICT (procurement_id) DO UPDATE SET
                is_selected   = EXCLUDED.is_selected,
                project_owner = EXCLUDED.project_owner,
                selected_at   = CASE WHEN EXCLUDED.is_selected THEN NOW() END,
                unselected_at = CASE WHEN EXCLUDED.is_selected THEN NULL ELSE NOW() END,
                updated_at    = NOW()
            RETURNING is_selected, project_owner`
		return tx.QueryRowContext(ctx, query, procurementID, next, owner).
			Scan(&sel.IsSelected, &sel.ProjectOwner)
	})
	if err != nil {
		return nil, err
	}
	return sel, nil
}

// Ход закупки

type progressRow struct {
	models.Progress
	PurchasingID      int    `db:"purchasing_id"`
	TotalPriceControl string `db:"total_price_control"`
}

func (s *Storage) GetProgress(ctx context.Context, procurementID int) (*models.Progress, error) {
	var row progressRow
	query := `
        SELECT
            p.id AS procurement_id,
            COALESCE(p.project_title, '') AS procurement_title,
            COALESCE(p.project_number, '') AS procurement_number,
            COALESCE(p.total_price_control, '') AS total_price_control,
            pp.id AS purchasing_id,
            pp.is_selected,
            pp.bidding_status,
            pp.client_contact,
            pp.client_phone,
            pp.cost
        FROM procurement_emall p
        JOIN procurement_purchasing pp ON pp.procurement_id = p.id
        WHERE p.id = $1`
	if err := s.db.GetContext(ctx, &row, query, procurementID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotSelected
		}
		return nil, err
	}
	if !row.IsSelected {
		return nil, ErrNotSelected
	}

	progress := row.Progress
	progress.TotalBudget, _ = format.ParsePrice(row.TotalPriceControl)

	suppliers, err := s.suppliersFor(ctx, row.PurchasingID)
	if err != nil {
		return nil, err
	}
	progress.SuppliersInfo = suppliers

	progress.RemarksHistory = []models.Remark{}
	err = s.db.SelectContext(ctx, &progress.RemarksHistory, `
        SELECT created_by, remark_content, created_at
        FROM procurement_remarks
        WHERE purchasing_id = $1
        ORDER BY created_at ASC, id ASC`, row.PurchasingID)
	if err != nil {
		return nil, err
	}
	return &progress, nil
}

func (s *Storage) suppliersFor(ctx context.Context, purchasingID int) ([]models.Supplier, error) {
	suppliers := []models.Supplier{}
	err := s.db.SelectContext(ctx, &suppliers, `
        SELECT s.id, s.name, s.source, s.contact, s.store_name, ps.is_selected
        FROM procurement_supplier ps
        JOIN procurement_suppliers s ON s.id = ps.supplier_id
        WHERE ps.purchasing_id = $1
        ORDER BY ps.id`, purchasingID)
	if err != nil || len(suppliers) == 0 {
		return suppliers, err
	}

	ids := make([]int64, len(suppliers))
	for i, sup := range suppliers {
		ids[i] = int64(sup.ID)
	}
	var rows []struct {
		SupplierID int `db:"supplier_id"`
		models.Commodity
	}
	err = s.db.SelectContext(ctx, &rows, `
        SELECT supplier_id, id, name, specification, price, quantity, product_url
        FROM supplier_commodities
        WHERE supplier_id = ANY($1)
        ORDER BY id`, pq.Array(ids))
	if err != nil {
		return nil, err
	}

	byID := make(map[int]int, len(suppliers))
	for i := range suppliers {
		suppliers[i].Commodities = []models.Commodity{}
		byID[suppliers[i].ID] = i
	}
	for _, r := range rows {
		if i, ok := byID[r.SupplierID]; ok {
			suppliers[i].Commodities = append(suppliers[i].Commodities, r.Commodity)
		}
	}
	for i := range suppliers {
		suppliers[i].TotalQuote = suppliers[i].Quote()
	}
	return suppliers, nil
}

func selectedPurchasingID(ctx context.Context, tx *sqlx.Tx, procurementID int) (int, error) {
	var row struct {
		ID         int  `db:"id"`
		IsSelected bool `db:"is_selected"`
	}
	err := tx.GetContext(ctx, &row,
		`SELECT id, is_selected FROM procurement_purchasing WHERE procurement_id = $1 FOR UPDATE`, procurementID)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && !row.IsSelected) {
		return 0, ErrNotSelected
	}
	return row.ID, err
}

func (s *Storage) UpdateProgress(ctx context.Context, procurementID int, upd models.ProgressUpdate, user string) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		purchasingID, err := selectedPurchasingID(ctx, tx, procurementID)
		if err != nil {
			return err
		}

		query := `
            UPDATE procurement_purchasing
            SET bidding_status = COALESCE($2, bidding_status),
                client_contact = COALESCE($3, client_contact),
                client_phone   = COALESCE($4, client_phone),
                cost           = COALESCE($5, cost),
                updated_at     = NOW()
            WHERE id = $1`
		if _, err := tx.ExecContext(ctx, query, purchasingID,
			upd.BiddingStatus, upd.ClientContact, upd.ClientPhone, upd.Cost); err != nil {
			return err
		}

		// Отсутствующие связи пропускаются, как и раньше
		for _, sel := range upd.SupplierSelection {
			if _, err := tx.ExecContext(ctx,
				`UPDATE procurement_supplier SET is_selected = $1 WHERE purchasing_id = $2 AND supplier_id = $3`,
				sel.IsSelected, purchasingID, sel.SupplierID); err != nil {
				return err
			}
		}

		if upd.NewRemark != nil {
			content := strings.TrimSpace(upd.NewRemark.RemarkContent)
			if content == "" {
				return nil
			}
			author := strings.TrimSpace(upd.NewRemark.CreatedBy)
			if author == "" {
				author = user
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO procurement_remarks (purchasing_id, remark_content, created_by) VALUES ($1, $2, $3)`,
				purchasingID, content, author); err != nil {
				return err
			}
		}
		return nil
	})
}

// Поставщики

func (s *Storage) AddSupplier(ctx context.Context, procurementID int, in models.SupplierInput, user string) (int, error) {
	var supplierID int
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		purchasingID, err := selectedPurchasingID(ctx, tx, procurementID)
		if err != nil {
			return err
		}

		query := `
            INSERT INTO procurement_suppliers (name, source, contact, store_name, purchaser_created_by)
            VALUES ($1, $2, $3, $4, $5)
            RETURNING id`
		if err := tx.QueryRowContext(ctx, query, in.Name, in.Source, in.Contact, in.StoreName, user).
			Scan(&supplierID); err != nil {
			return err
		}
		if err := insertCommodities(ctx, tx, supplierID, in.Commodities, user); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO procurement_supplier (purchasing_id, supplier_id, is_selected) VALUES ($1, $2, $3)`,
			purchasingID, supplierID, in.IsSelected)
		return err
	})
	return supplierID, err
}

// UpdateSupplier заменяет позиции поставщика целиком.
func (s *Storage) UpdateSupplier(ctx context.Context, supplierID int, in models.SupplierInput, user string) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		query := `
            UPDATE procurement_suppliers
            SET name = $1, source = $2, contact = $3, store_name = $4,
                purchaser_updated_by = $5, updated_at = NOW()
            WHERE id = $6`
		res, err := tx.ExecContext(ctx, query, in.Name, in.Source, in.Contact, in.StoreName, user, supplierID)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE procurement_supplier SET is_selected = $1 WHERE supplier_id = $2`,
			in.IsSelected, supplierID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM supplier_commodities WHERE supplier_id = $1`, supplierID); err != nil {
			return err
		}
		return insertCommodities(ctx, tx, supplierID, in.Commodities, user)
	})
}

func (s *Storage) DeleteSupplier(ctx context.Context, supplierID int) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM procurement_suppliers WHERE id = $1`, supplierID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func insertCommodities(ctx context.Context, tx *sqlx.Tx, supplierID int, items []models.Commodity, user string) error {
	query := `
        INSERT INTO supplier_commodities
            (supplier_id, name, specification, price, quantity, product_url, purchaser_created_by)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`
	for _, c := range items {
		if _, err := tx.ExecContext(ctx, query,
			supplierID, c.Name, c.Specification, c.Price, c.Quantity, c.ProductURL, user); err != nil {
			return err
		}
	}
	return nil
}
