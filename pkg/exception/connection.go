package exception

import "github.com/yanun0323/errors"

var (
	ErrNotAuthenticated = errors.New("session is not authenticated")
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrRecorderClosed   = errors.New("recorder closed")
)
