// Package models holds the gorm mappings of the FieldWorkBook schema.
package models

// All lists every persisted model in dependency order.
func All() []any {
	return []any{
		&User{},
		&Team{},
		&Expense{},
		&AmountRequest{},
		&LedgerEvent{},
	}
}
