package dto

import "staybook/internal/domain/shared/money"

// MoneyDTO is an amount in minor units with its ISO currency code.
type MoneyDTO struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

func MapMoney(m money.Money) MoneyDTO {
	return MoneyDTO{Amount: m.Amount, Currency: m.Currency}
}
