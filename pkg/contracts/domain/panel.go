package domain

import (
	"time"
)

// PanelRow is one state-month observation from the input panel.
// Rel is the relative-price (convergence) variable; Veg carries the
// vegetable price-index value when the source file has one.
type PanelRow struct {
	State  string    `json:"state"`
	Date   time.Time `json:"date"` // monthly observations, normally the first of the month
	Rel    float64   `json:"rel"`
	Veg    float64   `json:"veg,omitempty"`
	HasVeg bool      `json:"-"`
}

// ColumnMapping records which input columns were detected for each role.
type ColumnMapping struct {
	State string   `json:"state"`
	Date  string   `json:"date,omitempty"`
	Year  string   `json:"year,omitempty"`
	Month string   `json:"month,omitempty"`
	Rel   string   `json:"rel"`
	Veg   []string `json:"veg,omitempty"`
}

// PanelMeta describes a loaded panel.
type PanelMeta struct {
	Source    string        `json:"source"`
	Sheet     string        `json:"sheet,omitempty"`
	Columns   ColumnMapping `json:"columns"`
	Rows      int           `json:"rows"`
	States    int           `json:"states"`
	FirstDate time.Time     `json:"first_date"`
	LastDate  time.Time     `json:"last_date"`
}

// InputFile describes a discovered panel input file.
type InputFile struct {
	Name     string    `json:"name"`
	Path     string    `json:"path"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
	Kind     string    `json:"kind"` // "csv" or "xlsx"
}
