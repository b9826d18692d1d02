// Package core provides the business logic for digesting lab-access usage exports.
//
// This package is the heart of labdigest, containing all domain logic
// independent of any storage backend or transport layer. It can be used by
// web handlers, the CLI, or tests without modification.
//
// # Architecture
//
// The package is organized around a linear digestion pipeline:
//
//   - [Sanitizer]: drops header rows and formula-error rows, trims cells, and
//     persists the result as the "Sanitized Data" snapshot.
//   - [ColumnRemapper]: reshapes sanitized rows into [CanonicalRecord] values
//     using an injected [SourceLayout].
//   - [NormalizeNames]: rewrites the full-name and advisor fields into
//     "Last, First" form and quarantines rows it cannot parse.
//   - [DictionaryEnricher]: fills EID and Department from lookup dictionaries.
//   - [DigestCommitter]: persists a digest artifact only when nothing is
//     quarantined.
//
// Each stage is gated by a [FlagStore], an explicit state machine over the
// artifact's processing flags:
//
//	new -> converted -> sanitized -> digested
//	                              -> quarantined (sanitized + has_errors)
//
// [Service] orchestrates a batch run over every raw artifact that has not
// been digested yet.
//
// # Error Handling
//
// Row-level problems never abort a batch. Unparseable names become
// [QuarantineRecord] values, short rows are reported as [FormatError]
// warnings, and flags that are already set are reported with
// [ErrDuplicateProcessing] so the caller can skip the stage. Only storage
// failures propagate.
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Each error category has a unique code for support reference:
//
//   - ROW001-ROW003: Row-level data problems (short rows, names)
//   - FLG001-FLG003: Processing flag conflicts
//   - STO001-STO004: Storage errors
//   - DICT001: Lookup dictionary errors
//   - FILE001-FILE004: Upload errors
//   - RPT001-RPT003: Stats report errors
package core
