package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/veloramarket/velora-backend/api/responses"
	"github.com/veloramarket/velora-backend/api/validators"
	"github.com/veloramarket/velora-backend/internal/coins"
	"github.com/veloramarket/velora-backend/pkg/enums"
	pkgerrors "github.com/veloramarket/velora-backend/pkg/errors"
	"github.com/veloramarket/velora-backend/pkg/logger"
	"github.com/veloramarket/velora-backend/pkg/pagination"
)

type createPendingRequest struct {
	UserID  string `json:"user_id" validate:"required,uuid4"`
	Coins   int    `json:"coins" validate:"required,min=1"`
	RefKind string `json:"ref_kind" validate:"required"`
	RefID   string `json:"ref_id" validate:"required"`
}

type pendingRefRequest struct {
	UserID  string `json:"user_id" validate:"required,uuid4"`
	RefKind string `json:"ref_kind" validate:"required"`
	RefID   string `json:"ref_id" validate:"required"`
}

type reverseEarnedRequest struct {
	UserID     string `json:"user_id" validate:"required,uuid4"`
	Coins      int    `json:"coins" validate:"required,min=1"`
	SourceKind string `json:"source_kind" validate:"required"`
	SourceRef  string `json:"source_ref" validate:"required"`
}

type redeemRequest struct {
	UserID string `json:"user_id" validate:"required,uuid4"`
	Coins  int    `json:"coins" validate:"required,min=1"`
	RefID  string `json:"ref_id" validate:"required"`
}

const maxRefLen = 128

func parseUserID(raw string) (uuid.UUID, error) {
	userID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid user id").
			WithDetails(map[string]any{"field": "user_id"})
	}
	return userID, nil
}

func parseRefKind(raw string) (enums.CoinRefKind, error) {
	kind, err := enums.ParseCoinRefKind(raw)
	if err != nil {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "invalid reference kind").
			WithDetails(map[string]any{"field": "ref_kind"})
	}
	return kind, nil
}

// CoinsCreatePending records a provisional award for an order that has not
// completed yet.
func CoinsCreatePending(svc coins.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body createPendingRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		userID, err := parseUserID(body.UserID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		refKind, err := parseRefKind(body.RefKind)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.CreatePending(r.Context(), coins.CreatePendingInput{
			UserID:  userID,
			Coins:   body.Coins,
			RefKind: refKind,
			RefID:   validators.SanitizeString(body.RefID, maxRefLen),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

func pendingResolutionHandler(
	logg *logger.Logger,
	resolve func(r *http.Request, ref coins.PendingRef) (*coins.PendingResult, error),
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body pendingRefRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		userID, err := parseUserID(body.UserID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		refKind, err := parseRefKind(body.RefKind)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := resolve(r, coins.PendingRef{
			UserID:  userID,
			RefKind: refKind,
			RefID:   validators.SanitizeString(body.RefID, maxRefLen),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// CoinsCompletePending converts a pending award into spendable coins.
func CoinsCompletePending(svc coins.Service, logg *logger.Logger) http.HandlerFunc {
	return pendingResolutionHandler(logg, func(r *http.Request, ref coins.PendingRef) (*coins.PendingResult, error) {
		return svc.CompletePending(r.Context(), ref)
	})
}

// CoinsCancelPending voids a pending award that never materialized.
func CoinsCancelPending(svc coins.Service, logg *logger.Logger) http.HandlerFunc {
	return pendingResolutionHandler(logg, func(r *http.Request, ref coins.PendingRef) (*coins.PendingResult, error) {
		return svc.CancelPending(r.Context(), ref)
	})
}

// CoinsReversePending claws back a pending award after a cancelled order.
func CoinsReversePending(svc coins.Service, logg *logger.Logger) http.HandlerFunc {
	return pendingResolutionHandler(logg, func(r *http.Request, ref coins.PendingRef) (*coins.PendingResult, error) {
		return svc.ReversePending(r.Context(), ref)
	})
}

// CoinsReverseEarned claws back coins from an earned lot after a return.
func CoinsReverseEarned(svc coins.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body reverseEarnedRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		userID, err := parseUserID(body.UserID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		sourceKind, err := parseRefKind(body.SourceKind)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.ReverseEarned(r.Context(), coins.ReverseEarnedInput{
			UserID:     userID,
			Coins:      body.Coins,
			SourceKind: sourceKind,
			SourceRef:  validators.SanitizeString(body.SourceRef, maxRefLen),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// CoinsRedeem spends coins against the user's wallet.
func CoinsRedeem(svc coins.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body redeemRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		userID, err := parseUserID(body.UserID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Redeem(r.Context(), coins.RedeemInput{
			UserID: userID,
			Coins:  body.Coins,
			RefID:  validators.SanitizeString(body.RefID, maxRefLen),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func userIDFromPath(r *http.Request) (uuid.UUID, error) {
	return parseUserID(chi.URLParam(r, "userId"))
}

// CoinsBalance returns the user's full coin balance, held coins included.
func CoinsBalance(svc coins.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := userIDFromPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.Balance(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// CoinsRedeemableBalance returns the portion spendable right now.
func CoinsRedeemableBalance(svc coins.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := userIDFromPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.RedeemableBalance(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// CoinsHistory returns the user's ledger, newest first.
func CoinsHistory(svc coins.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := userIDFromPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := validators.ParseQueryInt(r, "page", 1, 1, 1<<30)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.History(r.Context(), userID, pagination.Params{Page: page, Limit: limit})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
