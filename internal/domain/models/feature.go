package models

import "time"

// FeatureVector is the fixed-width numeric input for one (stock, date).
// Names and Values are aligned; the order is the feature schema and must
// match the artifact that scores it. Vectors are derived and recomputable,
// never mutated in place.
type FeatureVector struct {
	StockID  string
	AsOfDate time.Time
	Names    []string
	Values   []float64
}

// LabeledVector pairs a feature vector with its realized next-period return.
type LabeledVector struct {
	FeatureVector
	Label float64
}

// SchemaEqual reports whether the vector's feature names match the given
// schema exactly, including order.
func (v FeatureVector) SchemaEqual(schema []string) bool {
	if len(v.Names) != len(schema) {
		return false
	}
	for i, n := range v.Names {
		if n != schema[i] {
			return false
		}
	}
	return true
}
