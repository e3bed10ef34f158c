package process

import "errors"

// Error kinds recognized by the supervisor, per SPEC_FULL.md §7.
var (
	ErrStartTimeout        = errors.New("process: health probe did not succeed before startup timeout")
	ErrSpawnFailed         = errors.New("process: failed to launch child")
	ErrUpstreamUnreachable = errors.New("process: upstream became unreachable")
	ErrOrphanUnresolvable  = errors.New("process: orphan has no usable port")
)
