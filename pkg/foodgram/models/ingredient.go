package models

// MeasurementUnits lists the culinary units an ingredient may be measured in
var MeasurementUnits = []string{
	"g", "kg", "ml", "l", "pcs", "tbsp", "tsp", "cup", "pinch",
	"to taste", "drop", "slice", "clove", "bunch", "can", "pack",
}

// IsMeasurementUnit reports whether unit is a known measurement unit
func IsMeasurementUnit(unit string) bool {
	for _, u := range MeasurementUnits {
		if u == unit {
			return true
		}
	}
	return false
}

// Ingredient is catalog reference data; (name, unit) is unique
type Ingredient struct {
	ID              uint   `gorm:"primarykey" json:"id"`
	Name            string `gorm:"size:200;not null;uniqueIndex:idx_ingredient_name_unit;index" json:"name"`
	MeasurementUnit string `gorm:"size:200;not null;uniqueIndex:idx_ingredient_name_unit" json:"measurement_unit"`
}
