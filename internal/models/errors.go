package models

import "errors"

var (
	// ErrIncompatibleIndex means the stored index has no generation timestamp or
	// a different schema; only a full rebuild can recover.
	ErrIncompatibleIndex = errors.New("index is incompatible, run a full rebuild")

	ErrNotIndexed          = errors.New("repository has not been indexed")
	ErrSymbolNotFound      = errors.New("symbol not found")
	ErrFileNotIndexed      = errors.New("file is not in the index")
	ErrSemanticUnavailable = errors.New("semantic search unavailable")
)
