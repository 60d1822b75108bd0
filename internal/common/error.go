package common

import "fmt"

var (
	ErrValidation       = fmt.Errorf("validation error")
	ErrResolution       = fmt.Errorf("resolution error")
	ErrUpstream         = fmt.Errorf("upstream error")
	ErrTranscode        = fmt.Errorf("transcode error")
	ErrClientDisconnect = fmt.Errorf("client disconnected")

	ErrFormatNotFound = fmt.Errorf("format not found")
)
