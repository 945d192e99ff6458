package schoolsoft

import "errors"

var (
	// ErrInvalidAuth is returned for 401 responses: bad credentials on login,
	// or a rejected app key/token on data requests.
	ErrInvalidAuth = errors.New("schoolsoft: invalid authorization")
	// ErrServer is returned for 5xx responses.
	ErrServer = errors.New("schoolsoft: internal server error")
	// ErrEmptyBody is returned when an otherwise successful response carries
	// no payload.
	ErrEmptyBody = errors.New("schoolsoft: empty response body")
	// ErrConnection is returned when the request never produced a response.
	ErrConnection = errors.New("schoolsoft: connection failure")
)
