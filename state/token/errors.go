package token

import "errors"

// ErrBurnExceedsBalance is returned when a burn would exceed the operator's
// holdings.
var ErrBurnExceedsBalance = errors.New("token ledger: burn exceeds balance")
