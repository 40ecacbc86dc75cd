package scanner

import (
	"context"
	"errors"
	"strings"
)

// InitOptions are handed to the engine once per process.
type InitOptions struct {
	LicenseKey string `json:"license_key"`
	EnginePath string `json:"engine_path"`
}

type Barcode struct {
	Text string `json:"text"`
}

// ResultItem carries either a barcode or a bare text payload.
type ResultItem struct {
	Barcode *Barcode `json:"barcode,omitempty"`
	Text    string   `json:"text,omitempty"`
}

type ResultSet struct {
	Items     []ResultItem `json:"items"`
	Cancelled bool         `json:"cancelled,omitempty"`
}

// FirstPayload returns the first non-blank decoded payload.
func (r ResultSet) FirstPayload() (string, bool) {
	for _, item := range r.Items {
		if item.Barcode != nil && strings.TrimSpace(item.Barcode.Text) != "" {
			return item.Barcode.Text, true
		}
		if strings.TrimSpace(item.Text) != "" {
			return item.Text, true
		}
	}
	return "", false
}

// Engine is the licensed code-recognition SDK. CreateScanner shows the
// scanning UI and blocks until the user scans, cancels, or ctx ends.
type Engine interface {
	Initialize(ctx context.Context, opts InitOptions) error
	CreateScanner(ctx context.Context, cfg ScanConfig) (ResultSet, error)
}

var (
	ErrScanCancelled = errors.New("scan cancelled by user")
	ErrScanInFlight  = errors.New("a scan is already in progress")
	ErrAdapterClosed = errors.New("scan adapter is closed")
)
