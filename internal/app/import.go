package app

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/gearhaus/market-runtime/internal/dedup"
	"github.com/gearhaus/market-runtime/internal/signals"
	"github.com/gearhaus/market-runtime/internal/store"
)

type inventoryImport struct {
	Vehicles []struct {
		ID          string `json:"id"`
		Title       string `json:"title"`
		Make        string `json:"make"`
		Model       string `json:"model"`
		Year        int    `json:"year"`
		PriceCents  int64  `json:"price_cents"`
		MileageKM   int64  `json:"mileage_km"`
		SellerID    string `json:"seller_id"`
		Status      string `json:"status"`
		Description string `json:"description"`
		City        string `json:"city"`
	} `json:"vehicles"`
}

// ImportInventoryFile loads a dropped JSON file into the local
// catalog. Rows without an id are skipped; a malformed file raises
// an error toast instead of aborting the runtime.
func (o *Orchestrator) ImportInventoryFile(ctx context.Context, path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read import file: %w", err)
	}

	var batch inventoryImport
	if err := json.Unmarshal(content, &batch); err != nil {
		o.logger.Error("malformed inventory file", "path", path, "error", err)
		o.raiseToast(dedup.ToastError, "inventory file could not be parsed")
		return fmt.Errorf("parse import file: %w", err)
	}

	imported := 0
	for _, vehicle := range batch.Vehicles {
		if strings.TrimSpace(vehicle.ID) == "" {
			o.logger.Warn("skipping inventory row without id", "path", path)
			continue
		}
		record := store.VehicleRecord{
			ID:          vehicle.ID,
			Title:       vehicle.Title,
			Make:        vehicle.Make,
			Model:       vehicle.Model,
			Year:        vehicle.Year,
			PriceCents:  vehicle.PriceCents,
			MileageKM:   vehicle.MileageKM,
			SellerID:    vehicle.SellerID,
			Status:      vehicle.Status,
			Description: vehicle.Description,
			City:        vehicle.City,
		}
		if err := o.store.UpsertVehicle(ctx, record); err != nil {
			o.logger.Warn("import vehicle", "vehicle", vehicle.ID, "error", err)
			continue
		}
		o.loaded.put(record)
		imported++
	}

	if imported > 0 {
		o.logger.Info("inventory imported", "path", path, "count", imported)
		o.raiseToast(dedup.ToastSuccess, fmt.Sprintf("imported %d vehicles", imported))
		o.bus.Publish(signals.Event{Kind: signals.KindVehiclesUpdated})
	}
	return nil
}
