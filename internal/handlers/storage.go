package handlers

import (
	"context"

	"emall/db"
	"emall/models"
)

type StorageInterface interface {
	Ping(ctx context.Context) error

	ListProcurements(ctx context.Context, q db.ListQuery) (*db.ListResult, error)
	GetProcurement(ctx context.Context, id int) (*models.ProcurementDetail, error)

	SetSelection(ctx context.Context, procurementID int, desired *bool, user string) (*db.Selection, error)
	GetProgress(ctx context.Context, procurementID int) (*models.Progress, error)
	UpdateProgress(ctx context.Context, procurementID int, upd models.ProgressUpdate, user string) error

	AddSupplier(ctx context.Context, procurementID int, in models.SupplierInput, user string) (int, error)
	UpdateSupplier(ctx context.Context, supplierID int, in models.SupplierInput, user string) error
	DeleteSupplier(ctx context.Context, supplierID int) error
}
