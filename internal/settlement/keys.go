package settlement

import "github.com/google/uuid"

// idempotencyNamespace scopes settlement keys so they never collide with
// keys minted by other flows.
var idempotencyNamespace = uuid.MustParse("6f1d3c52-7a44-4b8e-9d0a-2c5e8b7f4a91")

// IdempotencyKey is the settlement-scoped key shared by the order and payment
// calls for one participant. It is stable across attempts and fits Square's
// 45 character limit.
func IdempotencyKey(dealID, buyerID uuid.UUID) string {
	return uuid.NewSHA1(idempotencyNamespace, []byte(dealID.String()+":"+buyerID.String())).String()
}
