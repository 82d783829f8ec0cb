package models

import "time"

type Product struct {
	ProductID   string    `json:"product_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Price       int64     `json:"price"`
	Category    string    `json:"category"`
	ImageURL    string    `json:"image_url,omitempty"`
	Available   bool      `json:"available"`
	Featured    bool      `json:"featured"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

const (
	CategoryArroces       = "ARROCES"
	CategoryPolloAsado    = "POLLO_ASADO"
	CategoryPolloBroaster = "POLLO_BROASTER"
	CategoryPolloMixto    = "POLLO_MIXTO"
	CategoryCombos        = "COMBOS"
	CategoryBebidas       = "BEBIDAS"
)

// Categories lists the menu sections in display order.
var Categories = []string{
	CategoryArroces,
	CategoryPolloAsado,
	CategoryPolloBroaster,
	CategoryPolloMixto,
	CategoryCombos,
	CategoryBebidas,
}

func IsValidCategory(category string) bool {
	for _, c := range Categories {
		if c == category {
			return true
		}
	}
	return false
}
