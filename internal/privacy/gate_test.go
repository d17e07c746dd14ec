package privacy

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/meltforce/setforge/internal/models"
)

// TestMarshalPolicyTable checks which categories cross the gate.
func TestMarshalPolicyTable(t *testing.T) {
	tests := []struct {
		name    string
		payload any
		allowed bool
	}{
		{"sensor sample by value", models.SensorSample{}, false},
		{"sensor sample by pointer", &models.SensorSample{}, false},
		{"sensor sample slice", []models.SensorSample{{}}, false},
		{"strain reading", models.StrainReading{}, false},
		{"strain reading slice", []models.StrainReading{{}}, false},
		{"supplement full entry", models.SupplementEntry{Text: "creatine 5g"}, false},
		{"set record", models.SetRecord{ID: uuid.New()}, true},
		{"redacted supplement", OutboundSupplement{PublicHash: "ab"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := Marshal(tt.payload)
			if tt.allowed {
				if err != nil {
					t.Fatalf("Marshal failed: %v", err)
				}
				if len(b) == 0 {
					t.Fatal("empty payload")
				}
				return
			}
			if !errors.Is(err, ErrPolicyViolation) {
				t.Errorf("err = %v, want ErrPolicyViolation", err)
			}
			if b != nil {
				t.Error("barred payload still produced bytes")
			}
		})
	}
}

// TestRedactSupplement hashes the public portion and drops the text.
func TestRedactSupplement(t *testing.T) {
	entry := models.SupplementEntry{
		UserID:    1,
		Text:      "vitamin d 2000iu",
		CreatedAt: time.Date(2026, 3, 9, 8, 0, 0, 0, time.UTC),
	}
	out, err := Redact(entry)
	if err != nil {
		t.Fatalf("Redact failed: %v", err)
	}

	sum := sha256.Sum256([]byte(entry.Text))
	if want := hex.EncodeToString(sum[:]); out.PublicHash != want {
		t.Errorf("hash = %q, want %q", out.PublicHash, want)
	}

	// The wire form must not contain the text anywhere.
	b, err := json.Marshal(out)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if strings.Contains(string(b), entry.Text) {
		t.Errorf("wire form leaks text: %s", b)
	}
}

// TestRedactRefusesRx keeps medication entries off the wire entirely.
func TestRedactRefusesRx(t *testing.T) {
	_, err := Redact(models.SupplementEntry{Text: "lisinopril 10mg", Rx: true})
	if !errors.Is(err, ErrPolicyViolation) {
		t.Errorf("err = %v, want ErrPolicyViolation", err)
	}
}

// TestRedactKeepsExistingHash does not rehash when the entry already
// carries its public hash.
func TestRedactKeepsExistingHash(t *testing.T) {
	out, err := Redact(models.SupplementEntry{Text: "creatine", PublicHash: "precomputed"})
	if err != nil {
		t.Fatalf("Redact failed: %v", err)
	}
	if out.PublicHash != "precomputed" {
		t.Errorf("hash = %q, want precomputed", out.PublicHash)
	}
}

// TestRetentionCutoff pins the 52-week wipe horizon.
func TestRetentionCutoff(t *testing.T) {
	now := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)
	want := now.Add(-52 * 7 * 24 * time.Hour)
	if got := RetentionCutoff(now); !got.Equal(want) {
		t.Errorf("RetentionCutoff = %v, want %v", got, want)
	}
}
