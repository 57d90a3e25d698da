package rules

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/JNZader/prgate/internal/cache"
	"github.com/JNZader/prgate/internal/logger"
)

// InheritConfig configures rule inheritance.
type InheritConfig struct {
	// InheritFrom lists shared rule files (HTTPS URLs or local paths),
	// applied in order between the embedded rules and the rules directory.
	InheritFrom []string `yaml:"inherit_from" mapstructure:"inherit_from"`
}

// HierarchicalLoader loads and merges rules from multiple sources.
type HierarchicalLoader struct {
	baseLoader *Loader
	httpClient *http.Client
	memory     *cache.LRUCache
	disk       *cache.FileCache
	log        *logger.Logger
}

// NewHierarchicalLoader creates a new hierarchical rule loader.
func NewHierarchicalLoader(rulesDir string) *HierarchicalLoader {
	return &HierarchicalLoader{
		baseLoader: NewLoader(rulesDir),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		memory: cache.NewLRUCache(64, 0),
		log:    logger.Default().WithPrefix("rules"),
	}
}

// WithDiskCache keeps URL sources on disk between runs. A source whose
// fetch fails is served from an expired entry when one exists.
func (hl *HierarchicalLoader) WithDiskCache(fc *cache.FileCache) *HierarchicalLoader {
	hl.disk = fc
	return hl
}

// WithHTTPClient replaces the client used for URL sources.
func (hl *HierarchicalLoader) WithHTTPClient(c *http.Client) *HierarchicalLoader {
	hl.httpClient = c
	return hl
}

// LoadWithInheritance loads embedded rules, then every inherited source,
// then the rules directory. A source that cannot be loaded is logged and
// skipped.
func (hl *HierarchicalLoader) LoadWithInheritance(ctx context.Context, config InheritConfig) ([]Rule, error) {
	if err := ValidateInheritConfig(config); err != nil {
		return nil, err
	}
	return hl.load(ctx, config.InheritFrom)
}

func (hl *HierarchicalLoader) load(ctx context.Context, sources []string) ([]Rule, error) {
	embedded, err := hl.baseLoader.loadEmbedded()
	if err != nil {
		return nil, fmt.Errorf("loading embedded rules: %w", err)
	}
	sets := [][]Rule{embedded}

	for _, source := range sources {
		parentRules, err := hl.loadFromSource(ctx, source)
		if err != nil {
			hl.log.Warn("failed to load rules from %s: %v", source, err)
			continue
		}
		sets = append(sets, parentRules)
	}

	if hl.baseLoader.rulesDir != "" {
		custom, err := hl.baseLoader.loadFromDir(hl.baseLoader.rulesDir)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("loading custom rules: %w", err)
		}
		sets = append(sets, custom)
	}

	return MergeRuleSets(sets...), nil
}

// loadFromSource loads rules from a URL or local file.
func (hl *HierarchicalLoader) loadFromSource(ctx context.Context, source string) ([]Rule, error) {
	data, ok, _ := hl.memory.Get(source)
	if !ok {
		var err error
		if isURL(source) {
			data, err = hl.fetchCached(ctx, source)
		} else {
			data, err = loadFromFile(source)
		}
		if err != nil {
			return nil, err
		}
	}

	rules, err := parseRulesYAML(data)
	if err != nil {
		return nil, err
	}

	_ = hl.memory.Set(source, data)
	return rules, nil
}

func (hl *HierarchicalLoader) fetchCached(ctx context.Context, url string) ([]byte, error) {
	if hl.disk == nil {
		return hl.fetchFromURL(ctx, url)
	}

	key := cache.KeyFor(url)
	if data, ok, err := hl.disk.Get(key); err == nil && ok {
		hl.log.Debug("using cached rules for %s", url)
		return data, nil
	}

	data, err := hl.fetchFromURL(ctx, url)
	if err != nil {
		if stale, ok := hl.disk.Stale(key); ok {
			hl.log.Warn("fetching %s failed, using stale copy: %v", url, err)
			return stale, nil
		}
		return nil, err
	}

	if err := hl.disk.Set(key, data); err != nil {
		hl.log.Debug("caching %s: %v", url, err)
	}
	return data, nil
}

// fetchFromURL fetches rules from a URL.
func (hl *HierarchicalLoader) fetchFromURL(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("User-Agent", "prgate/1.0")
	req.Header.Set("Accept", "application/yaml, text/yaml, application/x-yaml")

	resp, err := hl.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	return io.ReadAll(io.LimitReader(resp.Body, 1<<20)) // 1MB limit
}

// loadFromFile loads rules from a local file, relative to the working
// directory.
func loadFromFile(path string) ([]byte, error) {
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(cwd, path)
	}

	return os.ReadFile(path) //nolint:gosec // Path comes from config
}

// isURL checks if a source string is a URL.
func isURL(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

// ValidateInheritConfig validates an inheritance configuration.
func ValidateInheritConfig(config InheritConfig) error {
	for _, source := range config.InheritFrom {
		if source == "" {
			return fmt.Errorf("empty source in inherit_from")
		}
		if isURL(source) && !strings.HasPrefix(source, "https://") {
			return fmt.Errorf("insecure URL (must use HTTPS): %s", source)
		}
	}
	return nil
}
