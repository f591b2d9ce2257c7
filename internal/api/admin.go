package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"ReserveGate/internal/capacity"
	"ReserveGate/internal/logger"
	"ReserveGate/internal/replay"
	"ReserveGate/internal/roles"
)

// errBadParams marks envelope parameters that failed to decode.
var errBadParams = errors.New("invalid params")

// handleAdmin handles POST /admin: a signed envelope executed as its signer.
func (s *Server) handleAdmin(w http.ResponseWriter, r *http.Request) {
	var env Envelope
	if !readJSON(w, r, &env) {
		return
	}

	caller, digest, err := env.Open(s.domain, s.clock())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}

	replayed, err := s.markExecuted(envelopeKey{digest, caller}, env.IssuedAt)
	if err != nil {
		logger.Error("envelope journal failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if replayed {
		writeError(w, http.StatusConflict, ErrEnvelopeReplayed.Error())
		return
	}

	resp, err := s.dispatch(r.Context(), caller, &env)
	if err != nil {
		if errors.Is(err, errBadParams) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		writeClassified(w, err)
		return
	}

	logger.Info("admin action executed", "action", env.Action, "caller", caller)
	writeJSON(w, http.StatusOK, resp)
}

// dispatch runs one admin action for caller.
func (s *Server) dispatch(ctx context.Context, caller common.Address, env *Envelope) (*AdminResponse, error) {
	resp := &AdminResponse{Action: env.Action, Caller: caller.Hex()}

	switch env.Action {
	case ActionSetDailyLimit:
		var p AmountParams
		if err := decodeParams(env.Params, &p); err != nil {
			return nil, err
		}

		limit, err := parseAmount(p.Amount)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errBadParams, err)
		}

		return resp, s.ctrl.SetDailyLimit(ctx, caller, limit)

	case ActionSetCollateralRatio:
		var p RatioParams
		if err := decodeParams(env.Params, &p); err != nil {
			return nil, err
		}

		capacityAfter, err := s.ctrl.SetCollateralRatio(ctx, caller, p.RatioBps)
		if err != nil {
			return nil, err
		}
		resp.Capacity = capacityAfter.String()

		return resp, nil

	case ActionSetThreshold:
		var p ThresholdParams
		if err := decodeParams(env.Params, &p); err != nil {
			return nil, err
		}

		return resp, s.ctrl.SetThreshold(ctx, caller, p.Threshold)

	case ActionGrantRole, ActionRevokeRole:
		var p RoleParams
		if err := decodeParams(env.Params, &p); err != nil {
			return nil, err
		}

		role, err := roles.Parse(p.Role)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errBadParams, err)
		}

		if !common.IsHexAddress(p.Account) {
			return nil, fmt.Errorf("%w: invalid account %q", errBadParams, p.Account)
		}
		account := common.HexToAddress(p.Account)

		if env.Action == ActionGrantRole {
			return resp, s.ctrl.GrantRole(ctx, caller, role, account)
		}

		return resp, s.ctrl.RevokeRole(ctx, caller, role, account)

	case ActionMigrate:
		// Snapshots are decompressed, so only admins get that far.
		if !s.ctrl.HasRole(roles.Admin, caller) {
			return nil, &capacity.Error{
				Class: capacity.ClassAuthorization,
				Op:    "migrate attestations",
				Err:   capacity.ErrUnauthorized,
			}
		}

		var p MigrateParams
		if err := decodeParams(env.Params, &p); err != nil {
			return nil, err
		}

		snap, err := replay.OpenSnapshot(p.Snapshot)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errBadParams, err)
		}

		n, err := s.ctrl.MigrateAttestations(ctx, caller, snap.IDs(), snap)
		if err != nil {
			return nil, err
		}
		resp.Imported = n

		return resp, nil

	case ActionPause:
		return resp, s.ctrl.Pause(ctx, caller)

	case ActionRequestUnpause:
		return resp, s.ctrl.RequestUnpause(ctx, caller)

	case ActionExecuteUnpause:
		return resp, s.ctrl.ExecuteUnpause(ctx, caller)

	case ActionEmergencyReduceCap:
		var p ReduceParams
		if err := decodeParams(env.Params, &p); err != nil {
			return nil, err
		}

		newCap, err := parseAmount(p.NewCap)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errBadParams, err)
		}

		capacityAfter, err := s.ctrl.EmergencyReduceCap(ctx, caller, newCap, p.Reason)
		if err != nil {
			return nil, err
		}
		resp.Capacity = capacityAfter.String()

		return resp, nil

	default:
		return nil, fmt.Errorf("%w: unknown action %q", errBadParams, env.Action)
	}
}

// decodeParams unmarshals action parameters.
func decodeParams(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		return fmt.Errorf("%w: missing", errBadParams)
	}

	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: %v", errBadParams, err)
	}

	return nil
}
