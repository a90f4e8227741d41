package crypto

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	TOTPAlgorithm = "SHA256"
	TOTPDigits    = 6
	TOTPCharSet   = numberChars
	TOTPPeriod    = 30

	// TOTPSkew is the number of periods accepted on either side of the current one.
	TOTPSkew = 1
)

var (
	ErrUnsupportedAlgorithm = errors.New("unsupported totp algorithm")
	ErrUnsupportedCharSet   = errors.New("unsupported totp character set")
)

// TOTP is the persisted configuration of a time based one-time password.
type TOTP struct {
	Secret    string
	Algorithm string
	Digits    int
	Period    int
	CharSet   string
}

// NewTOTP generates a fresh secret. period is the length of one code window in
// seconds. The returned URI is the otpauth:// key for authenticator apps.
func NewTOTP(issuer, account string, period int) (TOTP, string, error) {
	if period <= 0 {
		period = TOTPPeriod
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: account,
		Period:      uint(period),
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA256,
	})
	if err != nil {
		return TOTP{}, "", fmt.Errorf("generating totp secret: %w", err)
	}

	return TOTP{
		Secret:    key.Secret(),
		Algorithm: TOTPAlgorithm,
		Digits:    TOTPDigits,
		Period:    period,
		CharSet:   TOTPCharSet,
	}, key.URL(), nil
}

// Code returns the one-time password for the window containing at.
func (t TOTP) Code(at time.Time) (string, error) {
	opts, err := t.validateOpts()
	if err != nil {
		return "", err
	}
	return totp.GenerateCodeCustom(t.Secret, at, opts)
}

// Validate reports whether code matches the window containing at or one of
// its TOTPSkew neighbours.
func (t TOTP) Validate(code string, at time.Time) bool {
	opts, err := t.validateOpts()
	if err != nil {
		return false
	}
	ok, err := totp.ValidateCustom(strings.TrimSpace(code), t.Secret, at, opts)
	return err == nil && ok
}

func (t TOTP) validateOpts() (totp.ValidateOpts, error) {
	if t.CharSet != "" && t.CharSet != TOTPCharSet {
		return totp.ValidateOpts{}, ErrUnsupportedCharSet
	}

	alg, err := parseAlgorithm(t.Algorithm)
	if err != nil {
		return totp.ValidateOpts{}, err
	}

	period := t.Period
	if period <= 0 {
		period = TOTPPeriod
	}
	digits := t.Digits
	if digits <= 0 {
		digits = TOTPDigits
	}

	return totp.ValidateOpts{
		Period:    uint(period),
		Skew:      TOTPSkew,
		Digits:    otp.Digits(digits),
		Algorithm: alg,
	}, nil
}

func parseAlgorithm(name string) (otp.Algorithm, error) {
	switch strings.ToUpper(strings.ReplaceAll(name, "-", "")) {
	case "SHA1":
		return otp.AlgorithmSHA1, nil
	case "SHA256", "":
		return otp.AlgorithmSHA256, nil
	case "SHA512":
		return otp.AlgorithmSHA512, nil
	default:
		return 0, ErrUnsupportedAlgorithm
	}
}
