package errors

var (
	ErrInvalidCurrency = &DomainError{
		Code:    "INVALID_CURRENCY",
		Message: "unsupported currency",
	}
	ErrSameCurrency = &DomainError{
		Code:    "SAME_CURRENCY",
		Message: "source and target currency must differ",
		parent:  ErrInvalidCurrency,
	}
	ErrAmountOutOfRange = &DomainError{
		Code:    "AMOUNT_OUT_OF_RANGE",
		Message: "amount is out of the allowed range",
	}
	ErrInsufficientBalance = &DomainError{
		Code:    "INSUFFICIENT_BALANCE",
		Message: "insufficient wallet balance",
	}
	ErrSameWallet = &DomainError{
		Code:    "SAME_WALLET",
		Message: "cannot transfer to the same wallet",
	}
	ErrWalletNotFound = &DomainError{
		Code:    "WALLET_NOT_FOUND",
		Message: "wallet not found",
	}
	ErrWalletInactive = &DomainError{
		Code:    "WALLET_INACTIVE",
		Message: "wallet is not active",
	}
	ErrUnauthorized = &DomainError{
		Code:    "UNAUTHORIZED",
		Message: "requestor does not own the wallet",
	}
	ErrRateUnavailable = &DomainError{
		Code:    "RATE_UNAVAILABLE",
		Message: "exchange rate unavailable",
	}
	ErrContention = &DomainError{
		Code:      "CONTENTION",
		Message:   "ledger is busy, retry the operation",
		Retryable: true,
	}
	ErrDuplicateRequest = &DomainError{
		Code:    "DUPLICATE_REQUEST",
		Message: "operation with this idempotency key already applied",
	}
	ErrInsufficientLocked = &DomainError{
		Code:    "INSUFFICIENT_LOCKED_BALANCE",
		Message: "amount exceeds locked balance",
	}
	ErrLedgerMismatch = &DomainError{
		Code:    "LEDGER_MISMATCH",
		Message: "ledger replay does not match stored balance",
	}
)
