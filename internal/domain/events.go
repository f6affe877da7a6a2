package domain

import "time"

// EventType names the structured change records emitted by the transaction
// handlers.
type EventType string

const (
	EventMintTo   EventType = "mint_to"
	EventBurn     EventType = "burn"
	EventTransfer EventType = "transfer"
	EventPause    EventType = "pause"
	EventReUp     EventType = "reup"
)

// LedgerEvent is the change record appended on every successful mutation. It
// carries the affected identities, the amount, and the resulting balances so
// consumers never need to re-derive them.
type LedgerEvent struct {
	ID           string
	Type         EventType
	Mint         Identity
	Account      Identity
	Counterparty *Identity // transfer receiver
	Authority    Identity
	Amount       uint64
	NewBalance   uint64
	PoolBalance  *uint64 // set on reup and transfer records
	CreatedAt    time.Time
}
