/*
Package extract turns free-text customer requests into structured items.

PURPOSE:
  The core only needs "which catalog items, how many" and a few context
  hints (who is asking, for what event). How that is produced, by rules
  or by a language model, is behind the Extractor interface.

BOUNDARY:
  Whatever an extractor produces is untyped until Validate has run.
  Entries with a missing name, a non-integral or negative quantity, or
  a name that resolves to nothing in the catalog are dropped, never
  passed inward.

SEE ALSO:
  - rulebased.go: Deterministic implementation used by default
  - validate.go: DecodeJSON and Validate for untyped payloads
  - workflow/: The only caller
*/
package extract

import (
	"context"

	"github.com/warp/paper-supply/inventory"
)

// Context keys produced by ExtractContext.
const (
	KeyJobType      = "job_type"
	KeyEventType    = "event_type"
	KeyOrderSize    = "order_size"
	KeyOrganization = "organization"
	KeyIndustry     = "industry"
	KeyPurpose      = "purpose"
)

// Extractor is the text-extraction collaborator.
type Extractor interface {
	// ExtractItems returns catalog items and quantities mentioned in text.
	// Names in the result are exact catalog names.
	ExtractItems(ctx context.Context, text string, catalogNames []string) ([]inventory.RequestedItem, error)

	// ExtractContext returns free-form hints about the request. Unknown
	// keys are allowed; missing keys mean "not mentioned".
	ExtractContext(ctx context.Context, text string) (map[string]string, error)
}
