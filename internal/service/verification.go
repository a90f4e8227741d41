package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/roblesdotdev/epic-notes/internal/crypto"
	"github.com/roblesdotdev/epic-notes/internal/model"
	"github.com/roblesdotdev/epic-notes/internal/repository"
)

// VerificationPeriod is how long emailed codes stay valid.
const VerificationPeriod = 10 * time.Minute

// PrepareParams describes a verification to start.
type PrepareParams struct {
	Type   model.VerificationType
	Target string
	// Period is both the code window and the row lifetime. Zero means VerificationPeriod.
	Period time.Duration
	// RedirectTo is carried through the verify page to the next step.
	RedirectTo string
}

// Prepared is a started verification.
type Prepared struct {
	// VerificationID identifies the stored row. Preparing the same target and
	// type again replaces the row under a new id.
	VerificationID string
	OTP            string
	// VerifyURL is the absolute link that verifies without typing the code.
	VerifyURL string
	// RedirectTo is the verify page for this target without the code.
	RedirectTo string
}

// VerificationService creates and checks one-time codes keyed by (target, type).
type VerificationService struct {
	store  VerificationStore
	appURL string
	issuer string
	now    Clock
}

// NewVerificationService creates a new VerificationService. appURL prefixes
// emailed links.
func NewVerificationService(store VerificationStore, appURL, issuer string) *VerificationService {
	return &VerificationService{
		store:  store,
		appURL: strings.TrimRight(appURL, "/"),
		issuer: issuer,
		now:    systemClock,
	}
}

// Prepare generates a fresh secret for (p.Target, p.Type), replacing any
// pending one, and returns the current code for it.
func (s *VerificationService) Prepare(ctx context.Context, p PrepareParams) (*Prepared, error) {
	if !p.Type.Valid() {
		return nil, fmt.Errorf("unknown verification type %q", p.Type)
	}
	period := p.Period
	if period <= 0 {
		period = VerificationPeriod
	}

	now := s.now()
	otp, _, err := crypto.NewTOTP(s.issuer, p.Target, int(period/time.Second))
	if err != nil {
		return nil, err
	}
	code, err := otp.Code(now)
	if err != nil {
		return nil, fmt.Errorf("generating code: %w", err)
	}

	expires := now.Add(period)
	v := &model.Verification{
		Type:      p.Type,
		Target:    p.Target,
		Secret:    otp.Secret,
		Algorithm: otp.Algorithm,
		Digits:    otp.Digits,
		Period:    otp.Period,
		CharSet:   otp.CharSet,
		ExpiresAt: &expires,
		CreatedAt: now,
	}
	if err := s.store.Upsert(ctx, v); err != nil {
		return nil, fmt.Errorf("saving verification: %w", err)
	}

	q := url.Values{
		"type":   {string(p.Type)},
		"target": {p.Target},
	}
	if p.RedirectTo != "" {
		q.Set("redirectTo", p.RedirectTo)
	}
	redirectTo := "/verify?" + q.Encode()
	q.Set("code", code)

	return &Prepared{
		VerificationID: v.ID,
		OTP:            code,
		VerifyURL:      s.appURL + "/verify?" + q.Encode(),
		RedirectTo:     redirectTo,
	}, nil
}

// IsCodeValid reports whether code matches the pending verification. A
// missing or expired row is simply invalid.
func (s *VerificationService) IsCodeValid(ctx context.Context, typ model.VerificationType, target, code string) (bool, error) {
	return s.isCodeValid(ctx, typ, target, "", code)
}

// isCodeValid also requires the row to be verificationID when it is set.
func (s *VerificationService) isCodeValid(ctx context.Context, typ model.VerificationType, target, verificationID, code string) (bool, error) {
	now := s.now()
	v, err := s.store.FindActive(ctx, target, typ, now)
	if err != nil {
		if errors.Is(err, repository.ErrVerificationNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("looking up verification: %w", err)
	}
	if verificationID != "" && v.ID != verificationID {
		return false, nil
	}
	return totpOf(v).Validate(code, now), nil
}

// Verify checks code and consumes the row for single-use types. Any mismatch
// is ErrInvalidOrExpiredCode.
func (s *VerificationService) Verify(ctx context.Context, typ model.VerificationType, target, code string) error {
	return s.verify(ctx, typ, target, "", code)
}

// VerifyIssued is Verify for a code that must belong to the row Prepare
// returned as verificationID. A code from a later Prepare for the same target
// and type does not match.
func (s *VerificationService) VerifyIssued(ctx context.Context, typ model.VerificationType, target, verificationID, code string) error {
	if verificationID == "" {
		return ErrInvalidOrExpiredCode
	}
	return s.verify(ctx, typ, target, verificationID, code)
}

func (s *VerificationService) verify(ctx context.Context, typ model.VerificationType, target, verificationID, code string) error {
	ok, err := s.isCodeValid(ctx, typ, target, verificationID, code)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidOrExpiredCode
	}
	if typ.SingleUse() {
		return s.Consume(ctx, typ, target)
	}
	return nil
}

// Consume deletes the verification for (target, typ).
func (s *VerificationService) Consume(ctx context.Context, typ model.VerificationType, target string) error {
	if err := s.store.Delete(ctx, target, typ); err != nil {
		return fmt.Errorf("deleting verification: %w", err)
	}
	return nil
}

func totpOf(v *model.Verification) crypto.TOTP {
	return crypto.TOTP{
		Secret:    v.Secret,
		Algorithm: v.Algorithm,
		Digits:    v.Digits,
		Period:    v.Period,
		CharSet:   v.CharSet,
	}
}
