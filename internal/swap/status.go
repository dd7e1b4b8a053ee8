package swap

const (
	StatusAwaitingWallet    = "Waiting for wallet approval and confirmation..."
	StatusAwaitingSignature = "Waiting for Wormhole signatures..."
	StatusAwaitingRelayer   = "Waiting for relayer..."
	StatusRelayerTimeout    = "Timed out waiting for relayer. You'll need to complete the target swap manually."
	StatusComplete          = "Swap complete"
)

// Status is the snapshot of execution progress shown to the user.
type Status struct {
	State                State
	IsSwapping           bool
	IsSourceSwapComplete bool
	HasSignedVAA         bool
	IsTargetSwapComplete bool
	RelayerTimeoutString string
	Message              string
	LastError            error
}
