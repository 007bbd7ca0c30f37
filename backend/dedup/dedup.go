// Package dedup rejects evidence whose fingerprint has been seen before.
package dedup

import (
	"context"
	"fmt"
	"strings"

	"cleanproof/backend/model"
)

// Store answers whether a fingerprint appears in cleanup history, in the
// before or after column, verified or not.
type Store interface {
	CleanupFingerprintUsed(ctx context.Context, fingerprint string) (bool, error)
}

// MaxFingerprintLength is the width of the stored fingerprint columns.
const MaxFingerprintLength = 64

// Deduplicator performs exact-match checks. Near-duplicate detection belongs
// to the similarity collaborator.
type Deduplicator struct {
	store Store
}

func New(store Store) *Deduplicator {
	return &Deduplicator{store: store}
}

// Normalize trims and lower-cases a hex digest so "AB12" and "ab12 " match.
func Normalize(fingerprint string) string {
	return strings.ToLower(strings.TrimSpace(fingerprint))
}

// ValidLength rejects a normalized fingerprint that does not fit the
// fingerprint columns.
func ValidLength(fp string) error {
	if len(fp) > MaxFingerprintLength {
		return model.InvalidArgument("fingerprint is %d characters, at most %d allowed", len(fp), MaxFingerprintLength)
	}
	return nil
}

// Check returns DuplicateEvidence when the fingerprint was already used.
func (d *Deduplicator) Check(ctx context.Context, fingerprint string) error {
	fp := Normalize(fingerprint)
	if fp == "" {
		return model.InvalidArgument("fingerprint is required")
	}
	if err := ValidLength(fp); err != nil {
		return err
	}
	used, err := d.store.CleanupFingerprintUsed(ctx, fp)
	if err != nil {
		return fmt.Errorf("failed to check fingerprint: %w", err)
	}
	if used {
		return model.DuplicateEvidence(fp)
	}
	return nil
}
