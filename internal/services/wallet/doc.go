/*
Package wallet provides the balance operations of the ledger.

The wallet service handles:
- Wallet lifecycle (create once per principal, deactivate, never delete)
- Credit and debit of one (wallet, currency) balance
- Lock and unlock of part of a balance (reservations)
- Balance queries with a total in the base currency
- Ledger history and ledger verification

Every mutation runs as one ledger transaction: the balance row is created at
zero if absent, locked, checked, updated under its version, and a ledger
entry carrying the before and after values of the locked row is appended.
Either both writes commit or neither does.

Usage:

	svc := wallet.NewService(wallet.Deps{Repo: repo, Table: table, Rates: provider}, wallet.WalletConfig{})

	w, err := svc.CreateWallet(ctx, ownerID)

	bal, err := svc.Credit(ctx, wallet.OperationRequest{
	    WalletID: w.ID,
	    Currency: "USD",
	    Amount:   decimal.NewFromInt(100),
	})

Composition:

CreditTx and DebitTx apply a posting to a balance already locked inside an
open repositories.LedgerTx. The exchange and transfer engines use them to put
both legs of an operation into one transaction.

Events:

wallet.credited and wallet.debited are published after commit. A failed
publish is logged and never rolls back the committed operation.
*/
package wallet
