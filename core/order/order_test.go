package order

import (
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/veciapp/marketplace/random"
)

func TestEffectiveStatus(t *testing.T) {
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		status Status
		expiry sql.NullTime
		want   Status
	}{
		{
			name:   "pending within window",
			status: Pending,
			expiry: sql.NullTime{Time: now.Add(time.Hour), Valid: true},
			want:   Pending,
		},
		{
			name:   "pending past deadline",
			status: Pending,
			expiry: sql.NullTime{Time: now.Add(-time.Minute), Valid: true},
			want:   Expired,
		},
		{
			name:   "paid past deadline stays paid",
			status: Paid,
			expiry: sql.NullTime{Time: now.Add(-time.Hour), Valid: true},
			want:   Paid,
		},
		{
			name:   "pending without deadline",
			status: Pending,
			expiry: sql.NullTime{},
			want:   Pending,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := Order{Status: tt.status, ExpiresAt: tt.expiry}
			if got := o.EffectiveStatus(now); got != tt.want {
				t.Errorf("EffectiveStatus() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestProofGate(t *testing.T) {
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		status   Status
		expiry   sql.NullTime
		wantFlip bool
		wantErr  error
	}{
		{
			name:   "pending within window admits",
			status: Pending,
			expiry: sql.NullTime{Time: now.Add(time.Hour), Valid: true},
		},
		{
			name:     "lapsed pending rejects and flips",
			status:   Pending,
			expiry:   sql.NullTime{Time: now.Add(-time.Minute), Valid: true},
			wantFlip: true,
			wantErr:  ErrProofExpired,
		},
		{
			name:    "already expired rejects without flip",
			status:  Expired,
			expiry:  sql.NullTime{Time: now.Add(-time.Hour), Valid: true},
			wantErr: ErrProofExpired,
		},
		{
			name:   "paid past deadline admits",
			status: Paid,
			expiry: sql.NullTime{Time: now.Add(-time.Hour), Valid: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := Order{Status: tt.status, ExpiresAt: tt.expiry}

			flip, err := proofGate(o, now)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("proofGate() error = %v, want %v", err, tt.wantErr)
			}
			if flip != tt.wantFlip {
				t.Errorf("proofGate() flip = %t, want %t", flip, tt.wantFlip)
			}
		})
	}
}

func TestReferenceFormat(t *testing.T) {
	ref := random.Reference(ReferenceLength)
	if len(ref) != ReferenceLength {
		t.Fatalf("reference length = %d, want %d", len(ref), ReferenceLength)
	}
	if ref != strings.ToUpper(ref) {
		t.Errorf("reference %q contains lowercase characters", ref)
	}
	for _, r := range ref {
		if !strings.ContainsRune("0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ", r) {
			t.Errorf("reference %q contains unexpected character %q", ref, r)
		}
	}
}

func TestUniqueViolation(t *testing.T) {
	live := &pq.Error{Code: "23505", Constraint: "orders_live_cart"}

	if !uniqueViolation(live, "orders_live_cart") {
		t.Error("live-cart violation not recognized")
	}
	if uniqueViolation(live, "orders_reference_key") {
		t.Error("constraint name should discriminate violations")
	}
	if uniqueViolation(&pq.Error{Code: "23503", Constraint: "orders_live_cart"}, "orders_live_cart") {
		t.Error("non-unique violation code should not match")
	}
	if uniqueViolation(errors.New("plain"), "orders_live_cart") {
		t.Error("plain error should not match")
	}
}

func TestSaveProof(t *testing.T) {
	dir := t.TempDir()

	rel, err := saveProof(dir, "store-1", "order-1", "receipt.png", strings.NewReader("proof-bytes"))
	if err != nil {
		t.Fatalf("saveProof: %v", err)
	}

	want := filepath.Join("stores", "store-1", "orders", "order-1", "proof", "receipt.png")
	if rel != want {
		t.Fatalf("stored path = %q, want %q", rel, want)
	}

	got, err := os.ReadFile(filepath.Join(dir, rel))
	if err != nil {
		t.Fatalf("reading stored proof: %v", err)
	}
	if string(got) != "proof-bytes" {
		t.Errorf("stored content = %q", got)
	}
}

func TestSaveProofStripsPath(t *testing.T) {
	dir := t.TempDir()

	rel, err := saveProof(dir, "store-1", "order-1", "../../../etc/passwd", strings.NewReader("x"))
	if err != nil {
		t.Fatalf("saveProof: %v", err)
	}

	if strings.Contains(rel, "..") {
		t.Fatalf("stored path %q escapes the upload root", rel)
	}
	if filepath.Base(rel) != "passwd" {
		t.Errorf("stored file name = %q, want base name only", filepath.Base(rel))
	}
}
