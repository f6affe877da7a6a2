package handler

import (
	"strconv"
	"time"

	"github.com/tempoledger/tempod/internal/domain"
)

// The view types below are the wire representations of the domain records.
// Fixed-point amounts are rendered as decimal strings so clients never lose
// precision to 53-bit JSON numbers.

type mintView struct {
	ID              string  `json:"id"`
	Authority       string  `json:"authority"`
	Decimals        uint8   `json:"decimals"`
	Supply          string  `json:"supply"`
	FreezeAuthority *string `json:"freeze_authority,omitempty"`
	EquationFamily  string  `json:"equation_family"`
	PauseMode       string  `json:"pause_mode"`
	CreatedAt       string  `json:"created_at"`
}

func toMintView(m domain.Mint) mintView {
	v := mintView{
		ID:             string(m.ID),
		Authority:      string(m.Authority),
		Decimals:       m.Decimals,
		Supply:         strconv.FormatUint(m.Supply, 10),
		EquationFamily: string(m.EquationFamily),
		PauseMode:      string(m.PauseMode),
		CreatedAt:      m.CreatedAt.UTC().Format(time.RFC3339),
	}
	if fa, ok := domain.OptionalIdentity(m.FreezeAuthority); ok {
		s := string(fa)
		v.FreezeAuthority = &s
	}
	return v
}

type accountView struct {
	ID             string  `json:"id"`
	Mint           string  `json:"mint"`
	Owner          string  `json:"owner"`
	Balance        string  `json:"balance"`
	Snapshot       string  `json:"snapshot"`
	SnapshotTime   int64   `json:"snapshot_time"`
	CreationTime   int64   `json:"creation_time"`
	EquationFamily string  `json:"equation_family"`
	State          string  `json:"state"`
	Delegate       *string `json:"delegate,omitempty"`
	CreatedAt      string  `json:"created_at"`
}

func toAccountView(a domain.Account) accountView {
	v := accountView{
		ID:             string(a.ID),
		Mint:           string(a.Mint),
		Owner:          string(a.Owner),
		Balance:        strconv.FormatUint(a.Snapshot, 10),
		Snapshot:       strconv.FormatUint(a.Snapshot, 10),
		SnapshotTime:   a.SnapshotTime,
		CreationTime:   a.CreationTime,
		EquationFamily: string(a.EquationFamily),
		State:          string(a.State),
		CreatedAt:      a.CreatedAt.UTC().Format(time.RFC3339),
	}
	if d, ok := domain.OptionalIdentity(a.Delegate); ok {
		s := string(d)
		v.Delegate = &s
	}
	return v
}

type eventView struct {
	ID           string  `json:"id"`
	Type         string  `json:"type"`
	Mint         string  `json:"mint"`
	Account      string  `json:"account"`
	Counterparty *string `json:"counterparty,omitempty"`
	Authority    string  `json:"authority"`
	Amount       string  `json:"amount"`
	NewBalance   string  `json:"new_balance"`
	PoolBalance  *string `json:"pool_balance,omitempty"`
	CreatedAt    string  `json:"created_at"`
}

func toEventView(e domain.LedgerEvent) eventView {
	v := eventView{
		ID:         e.ID,
		Type:       string(e.Type),
		Mint:       string(e.Mint),
		Account:    string(e.Account),
		Authority:  string(e.Authority),
		Amount:     strconv.FormatUint(e.Amount, 10),
		NewBalance: strconv.FormatUint(e.NewBalance, 10),
		CreatedAt:  e.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if e.Counterparty != nil {
		s := string(*e.Counterparty)
		v.Counterparty = &s
	}
	if e.PoolBalance != nil {
		s := strconv.FormatUint(*e.PoolBalance, 10)
		v.PoolBalance = &s
	}
	return v
}

func toEventViews(events []domain.LedgerEvent) []eventView {
	views := make([]eventView, 0, len(events))
	for _, e := range events {
		views = append(views, toEventView(e))
	}
	return views
}
