package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"emall/models"
)

// inserter принимает записи краулера; *db.Storage подходит.
type inserter interface {
	InsertProcurement(ctx context.Context, d *models.ProcurementDetail) error
}

func decodeSeed(r io.Reader) ([]models.ProcurementDetail, error) {
	var items []models.ProcurementDetail
	if err := json.NewDecoder(r).Decode(&items); err != nil {
		return nil, fmt.Errorf("decode seed: %w", err)
	}
	for i := range items {
		if items[i].ProjectTitle == "" {
			return nil, fmt.Errorf("seed item %d: project_title is empty", i)
		}
		items[i].Normalize()
	}
	return items, nil
}

func seed(ctx context.Context, store inserter, r io.Reader) (int, error) {
	items, err := decodeSeed(r)
	if err != nil {
		return 0, err
	}
	for i := range items {
		if err := store.InsertProcurement(ctx, &items[i]); err != nil {
			return i, fmt.Errorf("insert %q: %w", items[i].ProjectTitle, err)
		}
	}
	return len(items), nil
}

func seedFile(ctx context.Context, store inserter, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return seed(ctx, store, f)
}
