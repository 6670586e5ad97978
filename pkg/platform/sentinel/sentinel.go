package sentinel

import "errors"

// Sentinel errors for infrastructure facts. The CRM adapters return these
// (optionally wrapped) so services can translate them into API errors.
//
// These represent factual states about host-platform resources, not
// validation failures:
// - ErrNotFound: entity does not exist on the host platform
// - ErrUnavailable: host platform temporarily unreachable
//
// For validation errors (bad input, missing fields), use pkg/apierrors.
var (
	ErrNotFound    = errors.New("not found")
	ErrUnavailable = errors.New("unavailable")
)
