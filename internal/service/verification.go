package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/iliyamo/ursol-insurance/internal/apperror"
	"github.com/iliyamo/ursol-insurance/internal/model"
	"github.com/iliyamo/ursol-insurance/internal/repository"
	"github.com/iliyamo/ursol-insurance/internal/worldcoin"
)

// ProofVerifier submits World ID proofs for cloud verification.
type ProofVerifier interface {
	ProofConfigured() bool
	VerifyProof(ctx context.Context, p worldcoin.Proof, action, signal string) (worldcoin.VerifyResult, error)
}

// ProofRequest is the body of POST /api/verify.
type ProofRequest struct {
	Payload worldcoin.Proof `json:"payload"`
	Action  string          `json:"action"`
	Signal  string          `json:"signal"`
}

// VerifyOutcome is the verification service's answer. Result is echoed to
// the client as verifyRes.
type VerifyOutcome struct {
	Verified bool
	Mock     bool
	Result   map[string]any
}

// Verification forwards proofs and records successful verifications.
type Verification struct {
	store    repository.Store
	verifier ProofVerifier
	mock     bool
	log      *slog.Logger
}

// NewVerification wires the proof verification flow. With mock set, an
// unreachable or unconfigured verification service is treated as an
// optimistic success.
func NewVerification(store repository.Store, verifier ProofVerifier, mock bool, log *slog.Logger) *Verification {
	return &Verification{store: store, verifier: verifier, mock: mock, log: log}
}

// Verify validates the proof shape, forwards it and, on success, marks the
// user verified and records one verification activity. A rejection is not
// an error: it returns an outcome with Verified false.
func (v *Verification) Verify(ctx context.Context, userID string, req ProofRequest) (VerifyOutcome, error) {
	p := req.Payload
	if p.Proof == "" || p.MerkleRoot == "" || p.NullifierHash == "" {
		return VerifyOutcome{}, apperror.InvalidProof()
	}
	log := v.log.With("action", req.Action)

	var (
		res worldcoin.VerifyResult
		err error
	)
	if v.verifier == nil || !v.verifier.ProofConfigured() {
		err = worldcoin.ErrNotConfigured
	} else {
		res, err = v.verifier.VerifyProof(ctx, p, req.Action, req.Signal)
	}
	if err != nil {
		if !v.mock {
			log.ErrorContext(ctx, "proof verification failed", "error", err)
			return VerifyOutcome{}, apperror.ExternalService("Verification service", err)
		}
		log.WarnContext(ctx, "verification service unavailable, using mock verification",
			"not_configured", errors.Is(err, worldcoin.ErrNotConfigured))
		if err := v.record(ctx, userID, fmt.Sprintf("World ID verification completed for action: %s (mock)", req.Action)); err != nil {
			return VerifyOutcome{}, err
		}
		return VerifyOutcome{
			Verified: true,
			Mock:     true,
			Result: map[string]any{
				"success":        true,
				"action":         req.Action,
				"nullifier_hash": p.NullifierHash,
			},
		}, nil
	}

	if !res.Success {
		return VerifyOutcome{Result: res.Body}, nil
	}
	if err := v.record(ctx, userID, "World ID verification completed for action: "+req.Action); err != nil {
		return VerifyOutcome{}, err
	}
	log.InfoContext(ctx, "proof verified")
	return VerifyOutcome{Verified: true, Result: res.Body}, nil
}

func (v *Verification) record(ctx context.Context, userID, description string) error {
	if err := v.store.SetUserVerified(ctx, userID, true); err != nil {
		return storeErr(err, "User")
	}
	if err := v.store.CreateActivity(ctx, &model.Activity{
		UserID:      userID,
		Type:        model.ActivityVerification,
		Description: description,
		Amount:      "0",
	}); err != nil {
		return storeErr(err, "Activity")
	}
	return nil
}
