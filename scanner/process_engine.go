package scanner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/Faraz011/Hindustan-Bills-sub001/apperrors"
)

// ProcessEngine drives an out-of-process engine binary. Each command writes
// one JSON request to the binary's stdin and reads one JSON reply from
// stdout:
//
//	<engine> init  {"license_key": "..."}        -> {"ok": true} | {"ok": false, "error": "..."}
//	<engine> scan  {"use_case": "...", ...}      -> {"items": [...], "cancelled": false}
type ProcessEngine struct {
	// Args are prepended to every command, Env appended to the environment.
	Args []string
	Env  []string

	mu         sync.Mutex
	path       string
	licenseKey string
}

type initReply struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

type scanRequest struct {
	LicenseKey string `json:"license_key"`
	ScanConfig
}

func (e *ProcessEngine) Initialize(ctx context.Context, opts InitOptions) error {
	info, err := os.Stat(opts.EnginePath)
	if err != nil {
		return fmt.Errorf("engine binary: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("engine path %s is a directory", opts.EnginePath)
	}

	var reply initReply
	if err := e.run(ctx, opts.EnginePath, "init", InitOptions{LicenseKey: opts.LicenseKey}, &reply); err != nil {
		return err
	}
	if !reply.OK {
		return fmt.Errorf("engine rejected license: %s", reply.Error)
	}

	e.mu.Lock()
	e.path = opts.EnginePath
	e.licenseKey = opts.LicenseKey
	e.mu.Unlock()
	return nil
}

func (e *ProcessEngine) CreateScanner(ctx context.Context, cfg ScanConfig) (ResultSet, error) {
	e.mu.Lock()
	path, key := e.path, e.licenseKey
	e.mu.Unlock()
	if path == "" {
		return ResultSet{}, apperrors.Wrap(apperrors.ErrLaunch, errors.New("engine not initialized"))
	}

	var rs ResultSet
	if err := e.run(ctx, path, "scan", scanRequest{LicenseKey: key, ScanConfig: cfg}, &rs); err != nil {
		if ctx.Err() != nil {
			return ResultSet{}, ctx.Err()
		}
		return ResultSet{}, apperrors.Wrap(apperrors.ErrLaunch, err)
	}
	return rs, nil
}

func (e *ProcessEngine) run(ctx context.Context, path, command string, request, reply any) error {
	body, err := json.Marshal(request)
	if err != nil {
		return err
	}

	args := append(append([]string{}, e.Args...), command)
	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Env = append(os.Environ(), e.Env...)
	cmd.Stdin = bytes.NewReader(body)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("engine %s: %w: %s", command, err, msg)
		}
		return fmt.Errorf("engine %s: %w", command, err)
	}
	if err := json.Unmarshal(stdout.Bytes(), reply); err != nil {
		return fmt.Errorf("engine %s: malformed reply: %w", command, err)
	}
	return nil
}
