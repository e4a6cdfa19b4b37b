// Package pricedb maintains a local database of daily exchange rates in the
// plain text "price history" format read by the ledger accounting tool.
//
// The database is an append-only sequence of rate records, one per line:
//
//	P 2022/12/01 00:00:00 USD 0.94985 EUR
//
// The core functionalities include:
//   - Rate records: a validated (date, base, price, quote) value and its
//     canonical text encoding. See [Rate] and [ParseRate].
//   - Rate stores: reading, bounding and appending records. [FileStore] is the
//     canonical text file; the sqlstore package offers the same [Store] on
//     SQLite.
//   - Synchronization: a [Synchronizer] finds the days missing between a
//     configured start date and today, fetches them from a rate provider in
//     chunks of at most one year, and appends each chunk durably so that an
//     interrupted run resumes where it stopped.
//
// The planning arithmetic (missing ranges and year chunks) lives in the date
// package. The HTTP provider lives in the provider package.
//
// This package serves as the foundational logic for the `lm` command-line
// tool.
package pricedb
