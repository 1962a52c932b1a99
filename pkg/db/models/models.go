package models

// All lists every persisted model, in dependency order, for dev auto-migration
// on sqlite and for repository tests.
func All() []any {
	return []any{
		&Product{},
		&CartRecord{},
		&CartItem{},
		&Order{},
		&OrderLineItem{},
		&OutboxEvent{},
		&OutboxDLQ{},
	}
}
