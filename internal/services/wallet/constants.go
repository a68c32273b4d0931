package wallet

import "time"

// Operation names used for metrics and logs.
const (
	OpCredit     = "credit"
	OpDebit      = "debit"
	OpLock       = "lock"
	OpUnlock     = "unlock"
	OpExchange   = "exchange"
	OpTransfer   = "transfer"
	OpDeactivate = "deactivate"
)

// Default configuration values
const (
	DefaultHistoryPageSize    = 20
	DefaultMaxHistoryPageSize = 100
	DefaultEventTimeout       = 5 * time.Second
)

// Cache keys and durations
const (
	WalletCachePrefix = "wallet"
	CacheDuration     = 5 * time.Minute
)
