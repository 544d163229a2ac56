package domain

import "strings"

// Entity is a company reference. A nil *Entity means "not extracted yet";
// a non-nil Entity with empty fields means the extractor ran and found nothing.
type Entity struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Contact string `json:"contact"`
	Email   string `json:"email"`
}

func (e *Entity) HasName() bool {
	return e != nil && strings.TrimSpace(e.Name) != ""
}

func (e *Entity) NameOrEmpty() string {
	if e == nil {
		return ""
	}
	return e.Name
}

type Entities struct {
	Supplier       *Entity `json:"supplier,omitempty"`
	TradingCompany *Entity `json:"trading_company,omitempty"`
	Customer       *Entity `json:"customer,omitempty"`
	Consignee      *Entity `json:"consignee,omitempty"`
}

// EmptyEntities is the degraded result used when extraction fails.
func EmptyEntities() Entities {
	return Entities{
		Supplier:       &Entity{},
		TradingCompany: &Entity{},
		Customer:       &Entity{},
		Consignee:      &Entity{},
	}
}

// MergeEntities fills gaps in existing from incoming. Set fields are never cleared or overwritten.
func MergeEntities(existing, incoming Entities) Entities {
	return Entities{
		Supplier:       mergeEntity(existing.Supplier, incoming.Supplier),
		TradingCompany: mergeEntity(existing.TradingCompany, incoming.TradingCompany),
		Customer:       mergeEntity(existing.Customer, incoming.Customer),
		Consignee:      mergeEntity(existing.Consignee, incoming.Consignee),
	}
}

func mergeEntity(existing, incoming *Entity) *Entity {
	switch {
	case existing == nil && incoming == nil:
		return nil
	case existing == nil:
		cp := *incoming
		return &cp
	case incoming == nil:
		cp := *existing
		return &cp
	}
	out := *existing
	out.Name = keepOrFill(out.Name, incoming.Name)
	out.Address = keepOrFill(out.Address, incoming.Address)
	out.Contact = keepOrFill(out.Contact, incoming.Contact)
	out.Email = keepOrFill(out.Email, incoming.Email)
	return &out
}

func keepOrFill(current, candidate string) string {
	if strings.TrimSpace(current) != "" {
		return current
	}
	return strings.TrimSpace(candidate)
}
