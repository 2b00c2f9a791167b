package platform

import "errors"

var (
	ErrUnsupported       = errors.New("platform: capability not supported")
	ErrPermissionDenied  = errors.New("platform: permission denied")
	ErrResourceNotLoaded = errors.New("platform: resource not loaded")
)
