package repository

import "errors"

// SourceKind names a DataSource variant.
type SourceKind string

const (
	SourceCFTC       SourceKind = "cftc"
	SourceCSV        SourceKind = "csv"
	SourceClickHouse SourceKind = "clickhouse"
)

// ErrUnknownSource is returned when a source kind is not supported.
var ErrUnknownSource = errors.New("unknown data source")

// IsValidSourceKind returns true if k is a supported source.
func IsValidSourceKind(k SourceKind) bool {
	switch k {
	case SourceCFTC, SourceCSV, SourceClickHouse:
		return true
	default:
		return false
	}
}
