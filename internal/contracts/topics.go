package contracts

const (
	// Wallet
	TopicDeposited = "wallet.deposited"
	TopicWithdrawn = "wallet.withdrawn"

	// Events lifecycle
	TopicEventStatusChanged = "event.status_changed"

	// Bets
	TopicBetPlaced = "bet.placed"
)
