// Package ledgerservice owns validator reward state: diamonds, raffle
// tickets, completed validation counts, and the trusted network.
//
// Every mutation is keyed by a caller-supplied event id and applied at
// most once, so consumers and upstream retries can replay safely. Balances
// never go below zero.
package ledgerservice
