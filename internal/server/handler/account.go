package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/tempoledger/tempod/internal/domain"
	"github.com/tempoledger/tempod/internal/service"
)

// AccountService defines the methods the account handler requires from the
// service layer.
type AccountService interface {
	InitializeAccount(ctx context.Context, p service.InitializeAccountParams) (domain.Account, error)
	GetAccount(ctx context.Context, id domain.Identity) (domain.Account, error)
	GetDecayPool(ctx context.Context, account domain.Identity) (domain.DecayPool, error)
	Balance(ctx context.Context, id domain.Identity) (uint64, error)
}

// AccountHandler serves account-related HTTP endpoints.
type AccountHandler struct {
	accounts AccountService
	logger   *slog.Logger
}

// NewAccountHandler creates an AccountHandler with the given service and logger.
func NewAccountHandler(accounts AccountService, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{
		accounts: accounts,
		logger:   logger,
	}
}

// createAccountRequest is the JSON body for account creation. Delegate is
// optional.
type createAccountRequest struct {
	ID       string `json:"id"`
	Mint     string `json:"mint"`
	Owner    string `json:"owner"`
	Delegate string `json:"delegate"`
}

// CreateAccount opens a zero-balance account under a mint.
// POST /api/accounts
func (h *AccountHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.ID == "" || req.Mint == "" || req.Owner == "" {
		writeError(w, http.StatusBadRequest, "id, mint, and owner are required")
		return
	}

	account, err := h.accounts.InitializeAccount(r.Context(), service.InitializeAccountParams{
		AccountID: domain.Identity(req.ID),
		MintID:    domain.Identity(req.Mint),
		Owner:     domain.Identity(req.Owner),
		Delegate:  optIdentity(req.Delegate),
	})
	if err != nil {
		if status, _ := statusForError(err); status == http.StatusInternalServerError {
			h.logger.ErrorContext(r.Context(), "handler: create account failed",
				slog.String("account", req.ID),
				slog.String("error", err.Error()),
			)
		}
		writeDomainError(w, err, "failed to create account")
		return
	}

	writeJSON(w, http.StatusCreated, toAccountView(account))
}

// GetAccount returns a single account by its ID, with the balance freshly
// evaluated as of now.
// GET /api/accounts/{id}
func (h *AccountHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing account id")
		return
	}

	account, err := h.accounts.GetAccount(r.Context(), domain.Identity(id))
	if err != nil {
		if status, _ := statusForError(err); status == http.StatusInternalServerError {
			h.logger.ErrorContext(r.Context(), "handler: get account failed",
				slog.String("account", id),
				slog.String("error", err.Error()),
			)
		}
		writeDomainError(w, err, "failed to get account")
		return
	}

	view := toAccountView(account)
	bal, err := h.accounts.Balance(r.Context(), account.ID)
	if err != nil {
		writeDomainError(w, err, "failed to evaluate balance")
		return
	}
	view.Balance = strconv.FormatUint(bal, 10)

	writeJSON(w, http.StatusOK, view)
}

// balanceResponse carries the evaluated balance at a point in time.
type balanceResponse struct {
	Account   string `json:"account"`
	Balance   string `json:"balance"`
	Timestamp string `json:"timestamp"`
}

// GetBalance evaluates the account's current time-derived balance.
// GET /api/accounts/{id}/balance
func (h *AccountHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing account id")
		return
	}

	bal, err := h.accounts.Balance(r.Context(), domain.Identity(id))
	if err != nil {
		if status, _ := statusForError(err); status == http.StatusInternalServerError {
			h.logger.ErrorContext(r.Context(), "handler: get balance failed",
				slog.String("account", id),
				slog.String("error", err.Error()),
			)
		}
		writeDomainError(w, err, "failed to evaluate balance")
		return
	}

	writeJSON(w, http.StatusOK, balanceResponse{
		Account:   id,
		Balance:   strconv.FormatUint(bal, 10),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// poolResponse carries the decay pool state of an account.
type poolResponse struct {
	Account   string `json:"account"`
	Amount    string `json:"amount"`
	UpdatedAt string `json:"updated_at"`
}

// GetDecayPool returns the decay pool paired with an account.
// GET /api/accounts/{id}/pool
func (h *AccountHandler) GetDecayPool(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing account id")
		return
	}

	pool, err := h.accounts.GetDecayPool(r.Context(), domain.Identity(id))
	if err != nil {
		if status, _ := statusForError(err); status == http.StatusInternalServerError {
			h.logger.ErrorContext(r.Context(), "handler: get decay pool failed",
				slog.String("account", id),
				slog.String("error", err.Error()),
			)
		}
		writeDomainError(w, err, "failed to get decay pool")
		return
	}

	writeJSON(w, http.StatusOK, poolResponse{
		Account:   string(pool.Account),
		Amount:    strconv.FormatUint(pool.Amount, 10),
		UpdatedAt: pool.UpdatedAt.UTC().Format(time.RFC3339),
	})
}
