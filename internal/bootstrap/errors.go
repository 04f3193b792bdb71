package bootstrap

import "fmt"

// HandleBindingError reports that a shared handle could not be attached to
// the application. Handle names the subsystem: persistence, auth, realtime,
// migration, cors or module:<name>.
type HandleBindingError struct {
	Handle string
	Err    error
}

func (e *HandleBindingError) Error() string {
	return fmt.Sprintf("binding %s: %v", e.Handle, e.Err)
}

func (e *HandleBindingError) Unwrap() error { return e.Err }

// StorageProvisioningError reports that the upload directory could not be
// created.
type StorageProvisioningError struct {
	Path string
	Err  error
}

func (e *StorageProvisioningError) Error() string {
	return fmt.Sprintf("provisioning upload directory %s: %v", e.Path, e.Err)
}

func (e *StorageProvisioningError) Unwrap() error { return e.Err }

// SchemaMaterializationWarning wraps a failed schema materialization. Boot
// logs it and carries on.
type SchemaMaterializationWarning struct {
	Err error
}

func (e *SchemaMaterializationWarning) Error() string {
	return fmt.Sprintf("schema materialization failed: %v", e.Err)
}

func (e *SchemaMaterializationWarning) Unwrap() error { return e.Err }
