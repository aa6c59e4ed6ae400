package api

// LnFeatures describes the capabilities a Backend Client negotiated with
// its node.
type LnFeatures struct {
	// InvoiceFromDescHash is true when the node can accept a 32-byte
	// description hash directly when creating an invoice.
	InvoiceFromDescHash bool
}

// LnMetrics is a per-backend liveness snapshot used by the Health Checker
// and, via the capacity-bias selector policy, by the Selector.
type LnMetrics struct {
	Healthy bool

	// NodeEffectiveInboundMsat is the sum of remote channel balances in
	// millisatoshis, used as a capacity signal in weighted selection.
	NodeEffectiveInboundMsat uint64
}
