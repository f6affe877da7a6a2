package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/tempoledger/tempod/internal/domain"
	"github.com/tempoledger/tempod/internal/service"
)

// MintService defines the methods the mint handler requires from the service
// layer.
type MintService interface {
	InitializeMint(ctx context.Context, p service.InitializeMintParams) (domain.Mint, error)
	GetMint(ctx context.Context, id domain.Identity) (domain.Mint, error)
}

// MintHandler serves mint-related HTTP endpoints.
type MintHandler struct {
	mints  MintService
	logger *slog.Logger
}

// NewMintHandler creates a MintHandler with the given service and logger.
func NewMintHandler(mints MintService, logger *slog.Logger) *MintHandler {
	return &MintHandler{
		mints:  mints,
		logger: logger,
	}
}

// equationParamsRequest mirrors domain.EquationParams on the wire. Absent
// fields stay nil so the service can distinguish unset from zero.
type equationParamsRequest struct {
	ExpirationTime *int64   `json:"expiration_time,omitempty"`
	InflationRate  *uint64  `json:"inflation_rate,omitempty"`
	DecayRate      *uint64  `json:"decay_rate,omitempty"`
	TimeUnit       *uint64  `json:"time_unit,omitempty"`
	Slope          *int64   `json:"slope,omitempty"`
	DecayConstant  *float64 `json:"decay_constant,omitempty"`
	ReUpBoost      *uint64  `json:"reup_boost,omitempty"`
}

func (r *equationParamsRequest) toDomain() *domain.EquationParams {
	if r == nil {
		return nil
	}
	return &domain.EquationParams{
		ExpirationTime: r.ExpirationTime,
		InflationRate:  r.InflationRate,
		DecayRate:      r.DecayRate,
		TimeUnit:       r.TimeUnit,
		Slope:          r.Slope,
		DecayConstant:  r.DecayConstant,
		ReUpBoost:      r.ReUpBoost,
	}
}

// createMintRequest is the JSON body for mint creation. Supply is the
// pre-minted starting supply as a decimal string; empty means zero.
type createMintRequest struct {
	ID              string                 `json:"id"`
	Authority       string                 `json:"authority"`
	Decimals        uint8                  `json:"decimals"`
	Supply          string                 `json:"supply,omitempty"`
	FreezeAuthority string                 `json:"freeze_authority,omitempty"`
	EquationFamily  string                 `json:"equation_family"`
	PauseMode       string                 `json:"pause_mode,omitempty"`
	HookID          string                 `json:"hook_id,omitempty"`
	EquationParams  *equationParamsRequest `json:"equation_params,omitempty"`
	ReUpPercentage  *uint8                 `json:"reup_percentage,omitempty"`
}

// CreateMint initializes a new token class.
// POST /api/mints
func (h *MintHandler) CreateMint(w http.ResponseWriter, r *http.Request) {
	var req createMintRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.ID == "" || req.Authority == "" {
		writeError(w, http.StatusBadRequest, "id and authority are required")
		return
	}

	family := domain.EquationFamily(req.EquationFamily)
	if req.EquationFamily == "" {
		family = domain.EquationIdentity
	}

	var supply uint64
	if req.Supply != "" {
		var err error
		supply, err = domain.ParseAmount(req.Supply)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid supply")
			return
		}
	}

	mint, err := h.mints.InitializeMint(r.Context(), service.InitializeMintParams{
		MintID:          domain.Identity(req.ID),
		Authority:       domain.Identity(req.Authority),
		Decimals:        req.Decimals,
		Supply:          supply,
		FreezeAuthority: optIdentity(req.FreezeAuthority),
		EquationFamily:  family,
		PauseMode:       domain.PauseMode(req.PauseMode),
		HookID:          optIdentity(req.HookID),
		EquationParams:  req.EquationParams.toDomain(),
		ReUpPercentage:  req.ReUpPercentage,
	})
	if err != nil {
		if status, _ := statusForError(err); status == http.StatusInternalServerError {
			h.logger.ErrorContext(r.Context(), "handler: create mint failed",
				slog.String("mint", req.ID),
				slog.String("error", err.Error()),
			)
		}
		writeDomainError(w, err, "failed to create mint")
		return
	}

	writeJSON(w, http.StatusCreated, toMintView(mint))
}

// GetMint returns a single mint by its ID.
// GET /api/mints/{id}
func (h *MintHandler) GetMint(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing mint id")
		return
	}

	mint, err := h.mints.GetMint(r.Context(), domain.Identity(id))
	if err != nil {
		if status, _ := statusForError(err); status == http.StatusInternalServerError {
			h.logger.ErrorContext(r.Context(), "handler: get mint failed",
				slog.String("mint", id),
				slog.String("error", err.Error()),
			)
		}
		writeDomainError(w, err, "failed to get mint")
		return
	}

	writeJSON(w, http.StatusOK, toMintView(mint))
}
