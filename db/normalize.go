package db

import (
	"context"
	"database/sql"

	"emall/internal/format"
	"emall/models"

	"github.com/jmoiron/sqlx"
)

// normalized: значения колонок *_num/*_at. Неразобранная строка даёт NULL.
type normalized struct {
	Price      sql.NullFloat64
	PublishAt  sql.NullTime
	QuoteStart sql.NullTime
	QuoteEnd   sql.NullTime
}

func normalize(p models.Procurement) normalized {
	var n normalized
	if v, ok := format.ParsePrice(p.TotalPriceControl); ok {
		n.Price = sql.NullFloat64{Float64: v, Valid: true}
	}
	n.PublishAt = nullTime(p.PublishDate)
	n.QuoteStart = nullTime(p.QuoteStartTime)
	n.QuoteEnd = nullTime(p.QuoteEndTime)
	return n
}

func nullTime(raw string) sql.NullTime {
	if t, ok := format.ParseDate(raw); ok {
		return sql.NullTime{Time: t, Valid: true}
	}
	return sql.NullTime{}
}

// Размер пачки при дозаполнении
const normalizeBatch = 500

// NormalizePending заполняет нормализованные колонки у строк, записанных в обход приложения
// (краулер пишет в таблицу напрямую). Возвращает число обработанных строк.
func (s *Storage) NormalizePending(ctx context.Context) (int, error) {
	total := 0
	for {
		var rows []models.Procurement
		err := s.db.SelectContext(ctx, &rows, `
            SELECT id,
                COALESCE(total_price_control, '') AS total_price_control,
                COALESCE(publish_date, '') AS publish_date,
                COALESCE(quote_start_time, '') AS quote_start_time,
                COALESCE(quote_end_time, '') AS quote_end_time
            FROM procurement_emall
            WHERE NOT normalized
            ORDER BY id
            LIMIT $1`, normalizeBatch)
		if err != nil {
			return total, err
		}
		if len(rows) == 0 {
			return total, nil
		}

		err = s.withTx(ctx, func(tx *sqlx.Tx) error {
			for _, p := range rows {
				n := normalize(p)
				if _, err := tx.ExecContext(ctx, `
                    UPDATE procurement_emall
                    SET total_price_num = $2, publish_at = $3, quote_start_at = $4, quote_end_at = $5,
                        normalized = TRUE
                    WHERE id = $1`,
					p.ID, n.Price, n.PublishAt, n.QuoteStart, n.QuoteEnd); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return total, err
		}
		total += len(rows)
		if len(rows) < normalizeBatch {
			return total, nil
		}
	}
}
