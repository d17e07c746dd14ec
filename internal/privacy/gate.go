// Package privacy is the single enforcement point for what may leave the
// device. Every outbound payload is marshaled through the gate; categories
// that must stay on-device fail with ErrPolicyViolation regardless of caller.
package privacy

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/meltforce/setforge/internal/models"
)

// ErrPolicyViolation means a payload category is barred from transmission.
// It is permanent: retrying the same payload can never succeed.
var ErrPolicyViolation = errors.New("privacy: payload category must not leave the device")

// RetentionWeeks is how long supplement full text is kept before the
// auto-wipe removes it (unless the user opted out).
const RetentionWeeks = 52

// RetentionCutoff returns the timestamp before which supplement text is due
// for wiping.
func RetentionCutoff(now time.Time) time.Time {
	return now.Add(-RetentionWeeks * 7 * 24 * time.Hour)
}

// OutboundSupplement is the only wire form a supplement entry may take.
type OutboundSupplement struct {
	UserID     int       `json:"user_id"`
	PublicHash string    `json:"public_hash"`
	CreatedAt  time.Time `json:"created_at"`
}

// HashPublic returns the SHA-256 hex digest of a supplement's public
// portion.
func HashPublic(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Check reports whether a value is allowed on the wire at all. The gate is
// stateless and safe for concurrent use.
func Check(v any) error {
	switch v.(type) {
	case models.SensorSample, *models.SensorSample, []models.SensorSample:
		return fmt.Errorf("%w: raw sensor samples", ErrPolicyViolation)
	case models.StrainReading, *models.StrainReading, []models.StrainReading:
		return fmt.Errorf("%w: strain readings", ErrPolicyViolation)
	case models.SupplementEntry, *models.SupplementEntry:
		// Full entries carry the on-device text; only the redacted form
		// from Redact may be marshaled.
		return fmt.Errorf("%w: supplement full text", ErrPolicyViolation)
	}
	return nil
}

// Marshal serializes a payload for transmission, enforcing the policy
// table. Intensity scores and set records pass through raw.
func Marshal(v any) ([]byte, error) {
	if err := Check(v); err != nil {
		return nil, err
	}
	return json.Marshal(v)
}

// Redact converts a supplement entry into its transmissible form. Rx and
// medication entries never cross the gate.
func Redact(e models.SupplementEntry) (OutboundSupplement, error) {
	if e.Rx {
		return OutboundSupplement{}, fmt.Errorf("%w: rx supplement entry", ErrPolicyViolation)
	}
	hash := e.PublicHash
	if hash == "" {
		hash = HashPublic(e.Text)
	}
	return OutboundSupplement{
		UserID:     e.UserID,
		PublicHash: hash,
		CreatedAt:  e.CreatedAt,
	}, nil
}
