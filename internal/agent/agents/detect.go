package agents

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

// DetectOption is a detection strategy. Returns (found, matchedPath, err).
type DetectOption func(ctx context.Context) (bool, string, error)

// WithExecutable checks an explicit path for an executable file.
func WithExecutable(path string) DetectOption {
	return func(ctx context.Context) (bool, string, error) {
		expanded := expandHomePath(path)
		if expanded == "" {
			return false, "", nil
		}
		info, err := os.Stat(expanded)
		if err != nil || info.IsDir() {
			return false, "", nil
		}
		return true, expanded, nil
	}
}

// WithCommand checks if a command is in PATH.
func WithCommand(name string) DetectOption {
	return func(ctx context.Context) (bool, string, error) {
		path, err := exec.LookPath(name)
		if err != nil {
			return false, "", nil
		}
		return true, path, nil
	}
}

// WithInstallDirs checks well-known install directories for name.
func WithInstallDirs(name string, dirs ...string) DetectOption {
	return func(ctx context.Context) (bool, string, error) {
		for _, dir := range dirs {
			if found, path, _ := WithExecutable(filepath.Join(dir, executableName(name)))(ctx); found {
				return true, path, nil
			}
		}
		return false, "", nil
	}
}

// Detect runs options in order and returns the first match.
func Detect(ctx context.Context, opts ...DetectOption) (string, bool, error) {
	for _, opt := range opts {
		if err := ctx.Err(); err != nil {
			return "", false, err
		}
		found, matched, err := opt(ctx)
		if err != nil {
			return "", false, err
		}
		if found {
			return matched, true, nil
		}
	}
	return "", false, nil
}

// Detection is the resolved binary for one agent.
type Detection struct {
	AgentID   string `json:"agent_id"`
	Path      string `json:"path,omitempty"`
	Available bool   `json:"available"`
}

// Detector resolves agent binaries and caches positive results for a TTL.
type Detector struct {
	cache       *ristretto.Cache[string, string]
	ttl         time.Duration
	customPaths map[string]string
	installDirs []string
}

// NewDetector creates a detector. customPaths maps agent id to a user
// configured binary path that takes precedence over PATH lookup.
func NewDetector(ttl time.Duration, customPaths map[string]string) (*Detector, error) {
	cache, err := ristretto.NewCache(&ristretto.Config[string, string]{
		NumCounters: 1000,
		MaxCost:     100,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create detection cache: %w", err)
	}
	return &Detector{
		cache:       cache,
		ttl:         ttl,
		customPaths: customPaths,
		installDirs: defaultInstallDirs(),
	}, nil
}

// Resolve returns the binary path for def. Missing binaries are not cached so
// a fresh install is picked up on the next call.
func (d *Detector) Resolve(ctx context.Context, def *Definition) (Detection, error) {
	if path, ok := d.cache.Get(def.ID); ok {
		return Detection{AgentID: def.ID, Path: path, Available: true}, nil
	}

	binary := def.Executable()
	opts := make([]DetectOption, 0, 3)
	if custom := d.customPaths[def.ID]; custom != "" {
		opts = append(opts, WithExecutable(custom))
	}
	opts = append(opts, WithCommand(binary), WithInstallDirs(binary, d.installDirs...))

	path, found, err := Detect(ctx, opts...)
	if err != nil {
		return Detection{AgentID: def.ID}, err
	}
	if !found {
		return Detection{AgentID: def.ID}, nil
	}
	d.cache.SetWithTTL(def.ID, path, 1, d.ttl)
	d.cache.Wait()
	return Detection{AgentID: def.ID, Path: path, Available: true}, nil
}

// ResolveAll resolves every definition in display order.
func (d *Detector) ResolveAll(ctx context.Context) ([]Detection, error) {
	out := make([]Detection, 0, len(definitions))
	for _, def := range definitions {
		det, err := d.Resolve(ctx, def)
		if err != nil {
			return nil, err
		}
		out = append(out, det)
	}
	return out, nil
}

// Invalidate drops a cached result.
func (d *Detector) Invalidate(agentID string) {
	d.cache.Del(agentID)
}

// Close releases the cache.
func (d *Detector) Close() {
	d.cache.Close()
}

func defaultInstallDirs() []string {
	switch runtime.GOOS {
	case "windows":
		return []string{"~/AppData/Roaming/npm", "~/.bun/bin"}
	case "darwin":
		return []string{"~/.local/bin", "~/.npm-global/bin", "~/.bun/bin", "~/.opencode/bin", "/opt/homebrew/bin", "/usr/local/bin"}
	default:
		return []string{"~/.local/bin", "~/.npm-global/bin", "~/.bun/bin", "~/.opencode/bin", "/usr/local/bin"}
	}
}

func executableName(name string) string {
	if runtime.GOOS == "windows" && filepath.Ext(name) == "" {
		return name + ".cmd"
	}
	return name
}

// expandHomePath expands ~ to the user's home directory.
func expandHomePath(path string) string {
	if path == "" {
		return ""
	}
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return filepath.Clean(filepath.FromSlash(path))
}
