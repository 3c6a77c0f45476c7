package manifest

import "errors"

var (
	ErrScan           = errors.New("manifest: directory scan failed")
	ErrLoad           = errors.New("manifest: load failed")
	ErrSave           = errors.New("manifest: save failed")
	ErrDownload       = errors.New("manifest: download failed")
	ErrMalformedEntry = errors.New("manifest: malformed entry")
)
