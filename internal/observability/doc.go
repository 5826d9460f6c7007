// Package observability provides event logging, metrics calculation, and
// alerting for attn. Ranking runs and user actions are persisted as JSON
// Lines (JSONL) events; metrics and alerts are derived on demand from the log.
package observability
