package core

import "github.com/shopspring/decimal"

// CategoryTotal is the summed amount of one category, used as chart input.
type CategoryTotal struct {
	Category string `json:"category"`
	Total    Money  `json:"total"`
}

// Summary holds the aggregate scalars shown on the analytics cards.
type Summary struct {
	TotalIncome  Money           `json:"total_income"`
	TotalExpense Money           `json:"total_expense"`
	NetSavings   Money           `json:"net_savings"`
	SavingsRate  decimal.Decimal `json:"savings_rate"` // percent, 2 decimals
}
