package ip

// Characteristic status codes a multi-status (207) response's JSON body
// carries per target.
const (
	StatusSuccess                  = 0
	StatusInsufficientPrivileges   = -70401
	StatusUnreachable              = -70402
	StatusBusy                     = -70403
	StatusReadOnly                 = -70404
	StatusWriteOnly                = -70405
	StatusNoNotify                 = -70406
	StatusOutOfResources           = -70407
	StatusTimedOut                 = -70408
	StatusNotFound                 = -70409
	StatusInvalidValue             = -70410
	StatusInsufficientAuthorization = -70411
)
