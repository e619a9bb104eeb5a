package contract

import "errors"

var (
	ErrModelInvoke      = errors.New("model invoke failed")
	ErrPromptMissing    = errors.New("required prompt is missing")
	ErrValidation       = errors.New("validation failed")
	ErrTenantNotFound   = errors.New("tenant not found")
	ErrOrderUnavailable = errors.New("order system unavailable")
	ErrIndexUnavailable = errors.New("inventory index unavailable")
)
