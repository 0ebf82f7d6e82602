package models

import "time"

// ReceiptType is a configured receipt category (card slips, vouchers, ...).
type ReceiptType struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// CustomParameter is a business-defined numeric field captured each day.
type CustomParameter struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Unit string `json:"unit,omitempty"`
}

// Product is a stock-tracked item whose usage is recorded daily.
type Product struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Unit string `json:"unit,omitempty"`
}

// ReferenceConfig bundles the configuration a business needs to capture a day
// entry offline. The cached copy is last-write-wins.
type ReferenceConfig struct {
	BusinessID       string            `json:"business_id"`
	IncomeSources    []IncomeSource    `json:"income_sources"`
	ReceiptTypes     []ReceiptType     `json:"receipt_types"`
	CustomParameters []CustomParameter `json:"custom_parameters"`
	Products         []Product         `json:"products"`
	FetchedAt        time.Time         `json:"fetched_at"`
}
