/*
ids.go - Human-readable sequential identifiers, scoped by year

FORMAT:
  Assets:          BRL-2026-001     (3-digit suffix)
  Register entries REG-2026-000001  (6-digit suffix)

CONCURRENCY:
  "Scan max, use max+1" is a race when run outside the transaction that
  inserts the stamped record. NextAssetID/NextRegisterID therefore take a
  Stores view and are only meaningful inside TxStore.WithTx, where the
  scan and the insert commit together. The storage layer's uniqueness
  constraints are the backstop: a racing duplicate surfaces as
  ErrStoreConflict and the whole call retries.

  Malformed existing identifiers are ignored by the max-scan, never a
  crash.
*/
package register

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

const (
	AssetIDPrefix    = "BRL"
	RegisterIDPrefix = "REG"

	assetSeqWidth    = 3
	registerSeqWidth = 6
)

// NextAssetID returns the next asset identifier for the year, e.g.
// BRL-2026-007. Must be called inside the same transaction as the asset
// insert.
func NextAssetID(ctx context.Context, stores Stores, year int) (string, error) {
	max, err := stores.Assets().MaxAssetSeq(ctx, year)
	if err != nil {
		return "", fmt.Errorf("scan asset ids: %w", err)
	}
	return FormatAssetID(year, max+1), nil
}

// NextRegisterID returns the next register identifier for the year, e.g.
// REG-2026-000042. Must be called inside the same transaction as the
// entry insert.
func NextRegisterID(ctx context.Context, stores Stores, year int) (string, error) {
	max, err := stores.Ledger().MaxRegisterSeq(ctx, year)
	if err != nil {
		return "", fmt.Errorf("scan register ids: %w", err)
	}
	return FormatRegisterID(year, max+1), nil
}

// FormatAssetID renders BRL-<year>-<seq> zero-padded to three digits.
func FormatAssetID(year, seq int) string {
	return fmt.Sprintf("%s-%d-%0*d", AssetIDPrefix, year, assetSeqWidth, seq)
}

// FormatRegisterID renders REG-<year>-<seq> zero-padded to six digits.
func FormatRegisterID(year, seq int) string {
	return fmt.Sprintf("%s-%d-%0*d", RegisterIDPrefix, year, registerSeqWidth, seq)
}

// ParseSeq extracts the numeric suffix from an identifier of the form
// <prefix>-<year>-<seq>. Returns ok=false for anything malformed; callers
// skip those rather than failing the scan.
func ParseSeq(id, prefix string, year int) (int, bool) {
	want := fmt.Sprintf("%s-%d-", prefix, year)
	if !strings.HasPrefix(id, want) {
		return 0, false
	}
	suffix := id[len(want):]
	if suffix == "" {
		return 0, false
	}
	n, err := strconv.Atoi(suffix)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// MaxSeq returns the highest parseable suffix in ids for the given prefix
// and year. Used by in-memory and SQL stores alike.
func MaxSeq(ids []string, prefix string, year int) int {
	max := 0
	for _, id := range ids {
		if n, ok := ParseSeq(id, prefix, year); ok && n > max {
			max = n
		}
	}
	return max
}
