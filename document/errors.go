package document

import "errors"

var (
	ErrNotFound       = errors.New("document: record not found")
	ErrQuery          = errors.New("document: query failed")
	ErrConnection     = errors.New("document: connection failed")
	ErrSchemaNotBuilt = errors.New("document: schema not built")
	ErrSubDocument    = errors.New("document: sub-document schemas cannot be registered")
	ErrMethodNotFound = errors.New("document: method not found")
	ErrModelExists    = errors.New("document: model already registered")
	ErrUnknownField   = errors.New("document: unknown field")
)
