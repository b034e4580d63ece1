package ble

// Response status codes carried at offset 2 of every response PDU
// ("HAP BLE status codes").
const (
	StatusSuccess                   byte = 0
	StatusUnsupportedPDU            byte = 1
	StatusMaxProcedures              byte = 2
	StatusInsufficientAuthorization byte = 3
	StatusInvalidInstanceID         byte = 4
	StatusInsufficientAuthentication byte = 5
	StatusInvalidRequest            byte = 6
)

// StatusName returns a short human-readable name for a response status
// byte, for error messages and logging.
func StatusName(status byte) string {
	switch status {
	case StatusSuccess:
		return "success"
	case StatusUnsupportedPDU:
		return "unsupported-pdu"
	case StatusMaxProcedures:
		return "max-procedures"
	case StatusInsufficientAuthorization:
		return "insufficient-authorization"
	case StatusInvalidInstanceID:
		return "invalid-instance-id"
	case StatusInsufficientAuthentication:
		return "insufficient-authentication"
	case StatusInvalidRequest:
		return "invalid-request"
	default:
		return "unrecognized"
	}
}
