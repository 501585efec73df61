// Package types contains common types used across the application
package types

// Column describes one feature column of the training matrix.
type Column struct {
	Name      string `json:"name"`
	Dimension string `json:"dimension"`
	Kind      string `json:"kind"`
	Policy    string `json:"policy"`
	Window    string `json:"window"`
}
