package core

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by the container format, the build pipeline and the
// asset hub. Every error produced while building or loading an asset wraps
// exactly one of these, so callers can branch with errors.Is.
var (
	// raw asset unreadable or malformed (build time)
	ErrImport = errors.New("import failed")
	// dependency cycle, dangling reference or duplicate id
	ErrBuildGraph = errors.New("invalid dependency graph")
	// bad magic, unsupported version or malformed table of contents
	ErrFormat   = errors.New("invalid container format")
	ErrNotFound = errors.New("asset not found")
	// checksum mismatch, the container is corrupted
	ErrIntegrity = errors.New("integrity check failed")
	// codec failure on well-formed bytes
	ErrDecode = errors.New("decode failed")
	// unregistered importer/codec or invalid settings
	ErrConfig = errors.New("configuration error")

	ErrPending   = errors.New("load still pending")
	ErrHubClosed = errors.New("asset hub is shut down")
)

var taxonomy = []error{
	ErrImport,
	ErrBuildGraph,
	ErrFormat,
	ErrNotFound,
	ErrIntegrity,
	ErrDecode,
	ErrConfig,
	ErrPending,
	ErrHubClosed,
}

// AssetError binds an error of the taxonomy to the asset it concerns.
type AssetError struct {
	Kind error
	ID   AssetID
	Err  error
}

func NewAssetError(kind error, id AssetID, err error) *AssetError {
	return &AssetError{Kind: kind, ID: id, Err: err}
}

// Errorf builds an AssetError whose cause is formatted like fmt.Errorf.
func Errorf(kind error, id AssetID, format string, args ...interface{}) *AssetError {
	return &AssetError{Kind: kind, ID: id, Err: fmt.Errorf(format, args...)}
}

func (e *AssetError) Error() string {
	if e.ID == "" {
		if e.Err == nil {
			return e.Kind.Error()
		}
		return fmt.Sprintf("%v: %v", e.Kind, e.Err)
	}
	if e.Err == nil {
		return fmt.Sprintf("asset %q: %v", e.ID, e.Kind)
	}
	return fmt.Sprintf("asset %q: %v: %v", e.ID, e.Kind, e.Err)
}

func (e *AssetError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// KindOf returns the taxonomy sentinel wrapped by err, or nil when err does
// not belong to the taxonomy.
func KindOf(err error) error {
	if err == nil {
		return nil
	}
	var ae *AssetError
	if errors.As(err, &ae) && ae.Kind != nil {
		return ae.Kind
	}
	for _, kind := range taxonomy {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
