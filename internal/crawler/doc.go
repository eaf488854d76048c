// Package crawler defines the shared vocabulary of the institution crawler:
// targets, tagged fetch outcomes, triples, reports, and the interfaces the
// fetcher, ledger, oracle and sinks implement. It also hosts the robots gate
// and the retry classification used by every fetcher.
package crawler
