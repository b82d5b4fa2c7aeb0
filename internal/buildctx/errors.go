package buildctx

import (
	"errors"
	"fmt"
)

// ErrConfig is matched by errors.Is for every *ConfigError.
var ErrConfig = errors.New("config error")

// ConfigError reports a missing or invalid build setting. Key names the
// property, flag or manifest attribute involved.
type ConfigError struct {
	Key string
	Msg string
	Err error
}

func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("%s: %s: %s", ErrConfig, e.Key, e.Msg)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is makes errors.Is(err, ErrConfig) true for any ConfigError.
func (e *ConfigError) Is(target error) bool { return target == ErrConfig }

func (e *ConfigError) Unwrap() error { return e.Err }

func configErrorf(key, format string, args ...any) *ConfigError {
	return &ConfigError{Key: key, Msg: fmt.Sprintf(format, args...)}
}
