package engine

// OfferKind distinguishes the sub-flows that suspend normal turn processing.
type OfferKind int

const (
	OfferTraitGate OfferKind = iota
	OfferBoonPrimary
	OfferBoonAttribute
	OfferBoonTrait
)

// Choice is one selectable option in a pending offer. ID is stable for
// ResolveChoice; Text is what free-typed input must match exactly.
type Choice struct {
	ID   string
	Text string
}

// Offer is a pending choice set presented to the player.
type Offer struct {
	Kind    OfferKind
	Prompt  string
	Choices []Choice
}

// Outcome is what an engine entry point hands back to the UI layer: a
// narrative response, a pending offer, or both (a turn that triggered a
// level-up carries the narrative and the primary Boon offer together).
type Outcome struct {
	Response *ModelResponse
	Offer    *Offer
	Note     string
}
