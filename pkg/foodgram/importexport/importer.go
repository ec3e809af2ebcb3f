// Package importexport loads the ingredient catalog from CSV or JSON and
// exports it back in either format.
package importexport

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/mikepea/foodgram/pkg/foodgram/apierr"
	"github.com/mikepea/foodgram/pkg/foodgram/logging"
	"github.com/mikepea/foodgram/pkg/foodgram/metrics"
	"github.com/mikepea/foodgram/pkg/foodgram/models"
	"github.com/mikepea/foodgram/pkg/foodgram/validation"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Record is one catalog entry
type Record struct {
	Name            string `json:"name" validate:"required,max=200"`
	MeasurementUnit string `json:"measurement_unit" validate:"required,unit"`
}

// Result represents the result of an import operation
type Result struct {
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors"`
}

// ParseJSON reads a JSON array of records.
func ParseJSON(r io.Reader) ([]Record, error) {
	var records []Record
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, apierr.Validation("file", "invalid JSON: "+err.Error())
	}
	return records, nil
}

// ParseCSV reads "name,measurement_unit" rows. A leading header row is skipped.
func ParseCSV(r io.Reader) ([]Record, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var records []Record
	for line := 1; ; line++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, apierr.Validation("file", "invalid CSV: "+err.Error())
		}
		if line == 1 && len(row) >= 2 && strings.EqualFold(row[0], "name") {
			continue
		}
		if len(row) != 2 {
			// kept so the importer reports it with its position
			records = append(records, Record{Name: strings.Join(row, ",")})
			continue
		}
		records = append(records, Record{Name: row[0], MeasurementUnit: row[1]})
	}
	return records, nil
}

// Importer writes records into the ingredient catalog
type Importer struct {
	db *gorm.DB
}

// NewImporter creates an importer
func NewImporter(db *gorm.DB) *Importer {
	return &Importer{db: db}
}

// Import inserts every valid record. Invalid records are reported in
// Errors; pairs already in the catalog are counted as skipped.
func (im *Importer) Import(ctx context.Context, records []Record) (Result, error) {
	result := Result{Errors: []string{}}

	err := im.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i, rec := range records {
			rec = Record{
				Name:            strings.TrimSpace(rec.Name),
				MeasurementUnit: strings.TrimSpace(rec.MeasurementUnit),
			}
			if err := validation.Struct(rec); err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("record %d: %v", i+1, err))
				result.Skipped++
				continue
			}

			res := tx.Clauses(clause.OnConflict{DoNothing: true}).
				Create(&models.Ingredient{Name: rec.Name, MeasurementUnit: rec.MeasurementUnit})
			if res.Error != nil {
				return fmt.Errorf("record %d: %w", i+1, res.Error)
			}
			if res.RowsAffected == 0 {
				result.Skipped++
				continue
			}
			result.Imported++
		}
		return nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("import ingredients: %w", err)
	}

	metrics.IngredientsImported.Add(float64(result.Imported))
	logging.Ctx(ctx).Info().
		Int("imported", result.Imported).
		Int("skipped", result.Skipped).
		Int("errors", len(result.Errors)).
		Msg("Ingredients imported")
	return result, nil
}

// Export returns the whole catalog ordered by name then unit.
func (im *Importer) Export(ctx context.Context) ([]Record, error) {
	var ingredients []models.Ingredient
	if err := im.db.WithContext(ctx).Order("name ASC, measurement_unit ASC").Find(&ingredients).Error; err != nil {
		return nil, fmt.Errorf("export ingredients: %w", err)
	}
	records := make([]Record, len(ingredients))
	for i, ing := range ingredients {
		records[i] = Record{Name: ing.Name, MeasurementUnit: ing.MeasurementUnit}
	}
	return records, nil
}

// WriteCSV writes records with a header row.
func WriteCSV(w io.Writer, records []Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"name", "measurement_unit"}); err != nil {
		return err
	}
	for _, rec := range records {
		if err := cw.Write([]string{rec.Name, rec.MeasurementUnit}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
