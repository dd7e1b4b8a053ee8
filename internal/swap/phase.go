package swap

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/wormhole-demo/xswap/internal/quote"
	"github.com/wormhole-demo/xswap/internal/wormhole"
)

// CachedQuote holds exactly one of an exact-in or exact-out quote.
type CachedQuote struct {
	exactIn  *quote.ExactInCrossParameters
	exactOut *quote.ExactOutCrossParameters
}

func exactInQuote(p *quote.ExactInCrossParameters) CachedQuote {
	return CachedQuote{exactIn: p}
}

func exactOutQuote(p *quote.ExactOutCrossParameters) CachedQuote {
	return CachedQuote{exactOut: p}
}

func (q CachedQuote) Type() quote.QuoteType {
	if q.exactOut != nil {
		return quote.QuoteTypeExactOut
	}
	return quote.QuoteTypeExactIn
}

func (q CachedQuote) ExactIn() (*quote.ExactInCrossParameters, bool) {
	return q.exactIn, q.exactIn != nil
}

func (q CachedQuote) ExactOut() (*quote.ExactOutCrossParameters, bool) {
	return q.exactOut, q.exactOut != nil
}

// Each phase carries only the data that exists once the executor reaches it.
type phase interface {
	isPhase()
}

type idlePhase struct{}

type quotedPhase struct {
	quote CachedQuote
}

// inFlight is everything known after the source transaction confirmed.
type inFlight struct {
	quote         CachedQuote // zero when resumed from a receipt
	sourceReceipt *types.Receipt
	search        wormhole.SearchParams
	message       *wormhole.CircleMessage // nil until discovered
}

type sourceConfirmedPhase struct {
	inFlight
}

type attestedPhase struct {
	inFlight
	signedVAA   []byte
	consumedKey common.Hash
}

type completePhase struct {
	attestedPhase
	targetReceipt *types.Receipt // nil when the relayer redeemed
	relayed       bool
}

func (idlePhase) isPhase() {}
func (quotedPhase) isPhase() {}
func (sourceConfirmedPhase) isPhase() {}
func (attestedPhase) isPhase() {}
func (completePhase) isPhase() {}

// flight returns the in-flight data of any phase past source confirmation.
func flight(p phase) (*inFlight, bool) {
	switch p := p.(type) {
	case sourceConfirmedPhase:
		return &p.inFlight, true
	case attestedPhase:
		return &p.inFlight, true
	case completePhase:
		return &p.inFlight, true
	}
	return nil, false
}
