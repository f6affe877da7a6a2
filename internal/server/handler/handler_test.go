package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tempoledger/tempod/internal/domain"
	"github.com/tempoledger/tempod/internal/service"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubLedger struct {
	mint    domain.Mint
	account domain.Account
	pool    domain.DecayPool
	balance uint64
	event   domain.LedgerEvent
	events  []domain.LedgerEvent
	err     error

	gotMintTo   service.MintToParams
	gotTransfer service.TransferParams
}

func (s *stubLedger) InitializeMint(_ context.Context, p service.InitializeMintParams) (domain.Mint, error) {
	if s.err != nil {
		return domain.Mint{}, s.err
	}
	return s.mint, nil
}

func (s *stubLedger) GetMint(_ context.Context, id domain.Identity) (domain.Mint, error) {
	if s.err != nil {
		return domain.Mint{}, s.err
	}
	return s.mint, nil
}

func (s *stubLedger) InitializeAccount(_ context.Context, p service.InitializeAccountParams) (domain.Account, error) {
	if s.err != nil {
		return domain.Account{}, s.err
	}
	return s.account, nil
}

func (s *stubLedger) GetAccount(_ context.Context, id domain.Identity) (domain.Account, error) {
	if s.err != nil {
		return domain.Account{}, s.err
	}
	return s.account, nil
}

func (s *stubLedger) GetDecayPool(_ context.Context, account domain.Identity) (domain.DecayPool, error) {
	if s.err != nil {
		return domain.DecayPool{}, s.err
	}
	return s.pool, nil
}

func (s *stubLedger) Balance(_ context.Context, id domain.Identity) (uint64, error) {
	if s.err != nil {
		return 0, s.err
	}
	return s.balance, nil
}

func (s *stubLedger) ListEvents(_ context.Context, account domain.Identity, opts domain.ListOpts) ([]domain.LedgerEvent, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.events, nil
}

func (s *stubLedger) MintTo(_ context.Context, p service.MintToParams) (domain.LedgerEvent, error) {
	s.gotMintTo = p
	if s.err != nil {
		return domain.LedgerEvent{}, s.err
	}
	return s.event, nil
}

func (s *stubLedger) Burn(_ context.Context, p service.BurnParams) (domain.LedgerEvent, error) {
	if s.err != nil {
		return domain.LedgerEvent{}, s.err
	}
	return s.event, nil
}

func (s *stubLedger) Transfer(_ context.Context, p service.TransferParams) (domain.LedgerEvent, error) {
	s.gotTransfer = p
	if s.err != nil {
		return domain.LedgerEvent{}, s.err
	}
	return s.event, nil
}

func (s *stubLedger) Pause(_ context.Context, p service.PauseParams) (domain.LedgerEvent, error) {
	if s.err != nil {
		return domain.LedgerEvent{}, s.err
	}
	return s.event, nil
}

func (s *stubLedger) ReUp(_ context.Context, p service.ReUpParams) (domain.LedgerEvent, error) {
	if s.err != nil {
		return domain.LedgerEvent{}, s.err
	}
	return s.event, nil
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestCreateMint(t *testing.T) {
	stub := &stubLedger{mint: domain.Mint{
		ID:             "mint-1",
		Authority:      "authority-1",
		Decimals:       9,
		EquationFamily: domain.EquationDeflationary,
		PauseMode:      domain.PauseModeReUp,
		CreatedAt:      time.Now(),
	}}
	h := NewMintHandler(stub, testLogger())

	body := `{
		"id": "mint-1",
		"authority": "authority-1",
		"decimals": 9,
		"equation_family": "deflationary",
		"pause_mode": "reup",
		"hook_id": "hook-1",
		"equation_params": {"decay_rate": 4, "time_unit": 86400},
		"reup_percentage": 50
	}`
	req := httptest.NewRequest(http.MethodPost, "/api/mints", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.CreateMint(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	got := decodeBody(t, rec)
	assert.Equal(t, "mint-1", got["id"])
	assert.Equal(t, "deflationary", got["equation_family"])
	assert.Equal(t, "reup", got["pause_mode"])
}

func TestCreateMintValidation(t *testing.T) {
	h := NewMintHandler(&stubLedger{}, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/mints", strings.NewReader(`{"id":"mint-1"}`))
	rec := httptest.NewRecorder()
	h.CreateMint(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateMintConflict(t *testing.T) {
	h := NewMintHandler(&stubLedger{err: domain.ErrAlreadyInUse}, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/mints",
		strings.NewReader(`{"id":"mint-1","authority":"authority-1"}`))
	rec := httptest.NewRecorder()
	h.CreateMint(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestGetMintNotFound(t *testing.T) {
	h := NewMintHandler(&stubLedger{err: domain.ErrNotFound}, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/mints/missing", nil)
	req.SetPathValue("id", "missing")
	rec := httptest.NewRecorder()
	h.GetMint(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetAccountEmbedsBalance(t *testing.T) {
	stub := &stubLedger{
		account: domain.Account{
			ID:       "acct-1",
			Mint:     "mint-1",
			Owner:    "alice",
			Snapshot: 1000,
			State:    domain.AccountInitialized,
		},
		balance: 750,
	}
	h := NewAccountHandler(stub, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/accounts/acct-1", nil)
	req.SetPathValue("id", "acct-1")
	rec := httptest.NewRecorder()
	h.GetAccount(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeBody(t, rec)
	assert.Equal(t, "1000", got["snapshot"], "snapshot is the committed value")
	assert.Equal(t, "750", got["balance"], "balance is freshly evaluated")
}

func TestGetBalance(t *testing.T) {
	h := NewAccountHandler(&stubLedger{balance: 123456789}, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/accounts/acct-1/balance", nil)
	req.SetPathValue("id", "acct-1")
	rec := httptest.NewRecorder()
	h.GetBalance(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeBody(t, rec)
	assert.Equal(t, "acct-1", got["account"])
	assert.Equal(t, "123456789", got["balance"], "balance is a decimal string")
}

func TestMintTo(t *testing.T) {
	stub := &stubLedger{event: domain.LedgerEvent{
		ID:         "ev-1",
		Type:       domain.EventMintTo,
		Mint:       "mint-1",
		Account:    "acct-1",
		Authority:  "authority-1",
		Amount:     100,
		NewBalance: 100,
		CreatedAt:  time.Now(),
	}}
	h := NewTransactionHandler(stub, testLogger())

	body := `{"account":"acct-1","authority":"authority-1","amount":"100"}`
	req := httptest.NewRequest(http.MethodPost, "/api/mints/mint-1/mint", strings.NewReader(body))
	req.SetPathValue("id", "mint-1")
	rec := httptest.NewRecorder()
	h.MintTo(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, domain.Identity("mint-1"), stub.gotMintTo.MintID)
	assert.Equal(t, uint64(100), stub.gotMintTo.Amount)
	got := decodeBody(t, rec)
	assert.Equal(t, "mint_to", got["type"])
	assert.Equal(t, "100", got["new_balance"])
}

func TestMintToBadAmount(t *testing.T) {
	h := NewTransactionHandler(&stubLedger{}, testLogger())

	body := `{"account":"acct-1","authority":"authority-1","amount":"-5"}`
	req := httptest.NewRequest(http.MethodPost, "/api/mints/mint-1/mint", strings.NewReader(body))
	req.SetPathValue("id", "mint-1")
	rec := httptest.NewRecorder()
	h.MintTo(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBurnInsufficient(t *testing.T) {
	h := NewTransactionHandler(&stubLedger{err: domain.ErrInsufficientFunds}, testLogger())

	body := `{"account":"acct-1","authority":"alice","amount":"100"}`
	req := httptest.NewRequest(http.MethodPost, "/api/mints/mint-1/burn", strings.NewReader(body))
	req.SetPathValue("id", "mint-1")
	rec := httptest.NewRecorder()
	h.Burn(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestTransfer(t *testing.T) {
	counterparty := domain.Identity("acct-2")
	poolBalance := uint64(4)
	stub := &stubLedger{event: domain.LedgerEvent{
		ID:           "ev-2",
		Type:         domain.EventTransfer,
		Mint:         "mint-1",
		Account:      "acct-1",
		Counterparty: &counterparty,
		Authority:    "alice",
		Amount:       40,
		NewBalance:   60,
		PoolBalance:  &poolBalance,
		CreatedAt:    time.Now(),
	}}
	h := NewTransactionHandler(stub, testLogger())

	body := `{"from":"acct-1","to":"acct-2","authority":"alice","amount":"40"}`
	req := httptest.NewRequest(http.MethodPost, "/api/transfers", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Transfer(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, domain.Identity("acct-1"), stub.gotTransfer.FromID)
	got := decodeBody(t, rec)
	assert.Equal(t, "acct-2", got["counterparty"])
	assert.Equal(t, "4", got["pool_balance"])
}

func TestTransferUnauthorized(t *testing.T) {
	h := NewTransactionHandler(&stubLedger{err: domain.ErrInvalidAuthority}, testLogger())

	body := `{"from":"acct-1","to":"acct-2","authority":"mallory","amount":"40"}`
	req := httptest.NewRequest(http.MethodPost, "/api/transfers", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Transfer(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestPauseNotAllowed(t *testing.T) {
	h := NewTransactionHandler(&stubLedger{err: domain.ErrPauseNotAllowed}, testLogger())

	body := `{"mint":"mint-1","authority":"alice","hook_id":"hook-1"}`
	req := httptest.NewRequest(http.MethodPost, "/api/accounts/acct-1/pause", strings.NewReader(body))
	req.SetPathValue("id", "acct-1")
	rec := httptest.NewRecorder()
	h.Pause(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestReUpHookVeto(t *testing.T) {
	h := NewTransactionHandler(&stubLedger{err: domain.ErrHookFailed}, testLogger())

	body := `{"mint":"mint-1","authority":"alice","hook_id":"hook-1"}`
	req := httptest.NewRequest(http.MethodPost, "/api/accounts/acct-1/reup", strings.NewReader(body))
	req.SetPathValue("id", "acct-1")
	rec := httptest.NewRecorder()
	h.ReUp(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestListEvents(t *testing.T) {
	stub := &stubLedger{events: []domain.LedgerEvent{
		{ID: "ev-2", Type: domain.EventBurn, Mint: "mint-1", Account: "acct-1", CreatedAt: time.Now()},
		{ID: "ev-1", Type: domain.EventMintTo, Mint: "mint-1", Account: "acct-1", CreatedAt: time.Now().Add(-time.Hour)},
	}}
	h := NewEventHandler(stub, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/accounts/acct-1/events?limit=10", nil)
	req.SetPathValue("id", "acct-1")
	rec := httptest.NewRecorder()
	h.ListEvents(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeBody(t, rec)
	events, ok := got["events"].([]any)
	require.True(t, ok)
	assert.Len(t, events, 2)
	assert.Equal(t, float64(10), got["limit"])
}
