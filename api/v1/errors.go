package v1

import "errors"

var (
	ErrResourceCtx = errors.New("resource missing in context")
	ErrLocatorJSON = errors.New("url is required")
	ErrContentType = errors.New("Content-Type must be application/json")
	ErrPolicyMode  = errors.New("invalid keyPolicy mode (allowed: none|all|named)")
	ErrNamedParams = errors.New("keyPolicy params are required for named mode")
)
