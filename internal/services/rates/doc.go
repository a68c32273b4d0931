/*
Package rates supplies conversion rates between supported currencies.

Every rate is derived from one batch of base-currency rates:

	rate(from, to) = baseRate(to) / baseRate(from)

where baseRate(c) is one unit of the base currency expressed in c, and
rate(x, x) is always 1. The batch for the base is fetched from a Source and
kept in memory for the configured TTL. Reads are lock-free; concurrent
refreshes of the same base are collapsed into one source call and the last
writer wins.

Customer-facing conversions use CustomerRate, which applies the configured
markup against the payer.
*/
package rates
