// internal/game/errors.go
package game

// ClientError is a user-facing failure. The dispatcher turns it into an
// envelope {s: 0, c: Code} and keeps the connection open.
type ClientError struct {
	Code string
}

func (e *ClientError) Error() string {
	return e.Code
}

// Sentinel client errors. Compare with errors.Is.
var (
	ErrGroupExists    = &ClientError{Code: "GROUP_EXISTS"}
	ErrInvalidString  = &ClientError{Code: "INVALID_STRING"}
	ErrMaxMembers     = &ClientError{Code: "MAX_MEMBERS"}
	ErrCantStart      = &ClientError{Code: "CANT_START"}
	ErrNoGroup        = &ClientError{Code: "NO_GROUP"}
	ErrInGroup        = &ClientError{Code: "IN_GROUP"}
	ErrInGame         = &ClientError{Code: "IN_GAME"}
	ErrInvalidGroup   = &ClientError{Code: "INVALID_GROUP"}
	ErrInvalidName    = &ClientError{Code: "INVALID_NAME"}
	ErrTakenName      = &ClientError{Code: "TAKEN_NAME"}
	ErrInvalidMessage = &ClientError{Code: "INVALID_MESSAGE"}
	ErrCantMessage    = &ClientError{Code: "CANT_MESSAGE"}
	ErrRateLimit      = &ClientError{Code: "RATE_LIMIT"}
	ErrInvalidJSON    = &ClientError{Code: "INVALID_JSON"}
	ErrNoData         = &ClientError{Code: "NO_DATA"}
	ErrInvalidType    = &ClientError{Code: "INVALID_TYPE"}
	ErrInvalidRange   = &ClientError{Code: "INVALID_RANGE"}
	ErrInvalidAction  = &ClientError{Code: "INVALID_ACTION"}
)
