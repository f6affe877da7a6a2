package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/tempoledger/tempod/internal/domain"
	"github.com/tempoledger/tempod/internal/service"
)

// TransactionService defines the mutation methods the transaction handler
// requires from the service layer.
type TransactionService interface {
	MintTo(ctx context.Context, p service.MintToParams) (domain.LedgerEvent, error)
	Burn(ctx context.Context, p service.BurnParams) (domain.LedgerEvent, error)
	Transfer(ctx context.Context, p service.TransferParams) (domain.LedgerEvent, error)
	Pause(ctx context.Context, p service.PauseParams) (domain.LedgerEvent, error)
	ReUp(ctx context.Context, p service.ReUpParams) (domain.LedgerEvent, error)
}

// TransactionHandler serves the transaction endpoints: mint_to, burn,
// transfer, pause, and reup.
type TransactionHandler struct {
	ledger TransactionService
	logger *slog.Logger
}

// NewTransactionHandler creates a TransactionHandler with the given service
// and logger.
func NewTransactionHandler(ledger TransactionService, logger *slog.Logger) *TransactionHandler {
	return &TransactionHandler{
		ledger: ledger,
		logger: logger,
	}
}

// supplyChangeRequest is the JSON body shared by mint_to and burn; the mint
// comes from the URL path. Amount is a decimal string of base units.
type supplyChangeRequest struct {
	Account   string `json:"account"`
	Authority string `json:"authority"`
	Amount    string `json:"amount"`
}

func (r supplyChangeRequest) validate() string {
	if r.Account == "" || r.Authority == "" || r.Amount == "" {
		return "account, authority, and amount are required"
	}
	return ""
}

// MintTo creates new supply in the target account.
// POST /api/mints/{id}/mint
func (h *TransactionHandler) MintTo(w http.ResponseWriter, r *http.Request) {
	mintID := pathParam(r, "id")
	if mintID == "" {
		writeError(w, http.StatusBadRequest, "missing mint id")
		return
	}
	var req supplyChangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	amount, err := domain.ParseAmount(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid amount")
		return
	}

	event, err := h.ledger.MintTo(r.Context(), service.MintToParams{
		MintID:    domain.Identity(mintID),
		AccountID: domain.Identity(req.Account),
		Authority: domain.Identity(req.Authority),
		Amount:    amount,
	})
	if err != nil {
		h.fail(w, r, "mint_to", req.Account, err, "failed to mint")
		return
	}

	writeJSON(w, http.StatusCreated, toEventView(event))
}

// Burn destroys supply from the account.
// POST /api/mints/{id}/burn
func (h *TransactionHandler) Burn(w http.ResponseWriter, r *http.Request) {
	mintID := pathParam(r, "id")
	if mintID == "" {
		writeError(w, http.StatusBadRequest, "missing mint id")
		return
	}
	var req supplyChangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	amount, err := domain.ParseAmount(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid amount")
		return
	}

	event, err := h.ledger.Burn(r.Context(), service.BurnParams{
		MintID:    domain.Identity(mintID),
		AccountID: domain.Identity(req.Account),
		Authority: domain.Identity(req.Authority),
		Amount:    amount,
	})
	if err != nil {
		h.fail(w, r, "burn", req.Account, err, "failed to burn")
		return
	}

	writeJSON(w, http.StatusCreated, toEventView(event))
}

// transferRequest is the JSON body for transfers.
type transferRequest struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Authority string `json:"authority"`
	Amount    string `json:"amount"`
}

// Transfer moves value between two accounts of the same mint.
// POST /api/transfers
func (h *TransactionHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.From == "" || req.To == "" || req.Authority == "" || req.Amount == "" {
		writeError(w, http.StatusBadRequest, "from, to, authority, and amount are required")
		return
	}
	amount, err := domain.ParseAmount(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid amount")
		return
	}

	event, err := h.ledger.Transfer(r.Context(), service.TransferParams{
		FromID:    domain.Identity(req.From),
		ToID:      domain.Identity(req.To),
		Authority: domain.Identity(req.Authority),
		Amount:    amount,
	})
	if err != nil {
		h.fail(w, r, "transfer", req.From, err, "failed to transfer")
		return
	}

	writeJSON(w, http.StatusCreated, toEventView(event))
}

// policyGateRequest is the JSON body shared by pause and reup; the account
// comes from the URL path. The hook_id must match the hook configured on the
// mint's policy extension.
type policyGateRequest struct {
	Mint      string `json:"mint"`
	Authority string `json:"authority"`
	HookID    string `json:"hook_id"`
}

func (r policyGateRequest) validate() string {
	if r.Mint == "" || r.Authority == "" || r.HookID == "" {
		return "mint, authority, and hook_id are required"
	}
	return ""
}

// Pause freezes the account's equation at its current value.
// POST /api/accounts/{id}/pause
func (h *TransactionHandler) Pause(w http.ResponseWriter, r *http.Request) {
	accountID := pathParam(r, "id")
	if accountID == "" {
		writeError(w, http.StatusBadRequest, "missing account id")
		return
	}
	var req policyGateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	event, err := h.ledger.Pause(r.Context(), service.PauseParams{
		MintID:    domain.Identity(req.Mint),
		AccountID: domain.Identity(accountID),
		Authority: domain.Identity(req.Authority),
		HookID:    domain.Identity(req.HookID),
	})
	if err != nil {
		h.fail(w, r, "pause", accountID, err, "failed to pause")
		return
	}

	writeJSON(w, http.StatusCreated, toEventView(event))
}

// ReUp reclaims the policy's percentage of the account's decay pool.
// POST /api/accounts/{id}/reup
func (h *TransactionHandler) ReUp(w http.ResponseWriter, r *http.Request) {
	accountID := pathParam(r, "id")
	if accountID == "" {
		writeError(w, http.StatusBadRequest, "missing account id")
		return
	}
	var req policyGateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	event, err := h.ledger.ReUp(r.Context(), service.ReUpParams{
		MintID:    domain.Identity(req.Mint),
		AccountID: domain.Identity(accountID),
		Authority: domain.Identity(req.Authority),
		HookID:    domain.Identity(req.HookID),
	})
	if err != nil {
		h.fail(w, r, "reup", accountID, err, "failed to reup")
		return
	}

	writeJSON(w, http.StatusCreated, toEventView(event))
}

// fail logs unexpected errors and writes the mapped domain error response.
func (h *TransactionHandler) fail(w http.ResponseWriter, r *http.Request, op, account string, err error, fallback string) {
	if status, _ := statusForError(err); status == http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "handler: "+op+" failed",
			slog.String("account", account),
			slog.String("error", err.Error()),
		)
	}
	writeDomainError(w, err, fallback)
}
