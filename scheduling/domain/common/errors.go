package common

import pkgError "github.com/AzielCF/postpilot/pkg/error"

var (
	ErrPostNotFound     = pkgError.NotFoundError("scheduled post not found")
	ErrInstanceNotFound = pkgError.NotFoundError("post instance not found")
)
