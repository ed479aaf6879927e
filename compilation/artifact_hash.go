package compilation

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/crytic/plum/contracts"
	"github.com/crytic/plum/logging"
	"github.com/crytic/plum/logging/colors"
	"github.com/crytic/plum/utils"
	"github.com/pkg/errors"
	"golang.org/x/exp/slices"
)

// ArtifactHashCacheFileName is the name of the file used to store the artifact hash. It is hidden so that it is not
// mistaken for an artifact.
const ArtifactHashCacheFileName = ".plum-artifact-hash"

// ArtifactHashCache stores the hash of the build output along with metadata.
type ArtifactHashCache struct {
	// Hash is the SHA-256 hash of the compiled bytecode.
	Hash string `json:"hash"`
	// Timestamp is when the hash was computed.
	Timestamp time.Time `json:"timestamp"`
}

// ComputeArtifactHash computes a SHA-256 hash of the name and bytecode of every provided contract. Deployment records
// are left out, so deploying does not change the hash. The hash is computed deterministically by sorting contract
// names before hashing.
func ComputeArtifactHash(artifacts []*contracts.Contract) string {
	hasher := sha256.New()

	sorted := slices.Clone(artifacts)
	slices.SortFunc(sorted, func(a, b *contracts.Contract) int {
		return strings.Compare(a.Name(), b.Name())
	})

	for _, c := range sorted {
		hasher.Write([]byte(c.Name()))
		hasher.Write([]byte{0})
		hasher.Write([]byte(strings.ToLower(c.Bytecode())))
		hasher.Write([]byte{0})
		hasher.Write([]byte(strings.ToLower(c.DeployedBytecode())))
		hasher.Write([]byte{0})
	}

	return hex.EncodeToString(hasher.Sum(nil))
}

// LoadArtifactHashCache loads the artifact hash cache from the specified directory.
// Returns nil if the cache file does not exist or cannot be parsed.
func LoadArtifactHashCache(directory string) *ArtifactHashCache {
	data, err := os.ReadFile(filepath.Join(directory, ArtifactHashCacheFileName))
	if err != nil {
		return nil
	}

	var cache ArtifactHashCache
	if err := json.Unmarshal(data, &cache); err != nil {
		return nil
	}
	return &cache
}

// SaveArtifactHashCache saves the artifact hash cache to the specified directory.
// Returns an error if the cache cannot be written.
func SaveArtifactHashCache(directory string, cache *ArtifactHashCache) error {
	data, err := json.MarshalIndent(cache, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal cache")
	}
	return utils.WriteFileAtomic(filepath.Join(directory, ArtifactHashCacheFileName), data, 0644)
}

// NotifyArtifactHashStatus hashes every valid artifact in the store, compares the hash with the cached one, and logs
// whether the build output is new or unchanged. It also updates the cache with the new hash.
func NotifyArtifactHashStatus(store *contracts.Store, logger *logging.Logger) {
	paths, err := store.List()
	if err != nil {
		logger.Warn("Failed to list build artifacts", err)
		return
	}

	artifacts := make([]*contracts.Contract, 0, len(paths))
	for _, path := range paths {
		if contract, err := store.Load(path); err == nil {
			artifacts = append(artifacts, contract)
		}
	}
	if len(artifacts) == 0 {
		return
	}

	currentHash := ComputeArtifactHash(artifacts)
	cachedHash := LoadArtifactHashCache(store.Directory())

	if cachedHash == nil || cachedHash.Hash != currentHash {
		logger.Info(
			colors.Bold, "artifacts: ", colors.Reset,
			"the build output holds a ", colors.GreenBold, "new", colors.Reset, " set of ", len(artifacts), " artifact(s)",
		)
	} else {
		logger.Info(
			colors.Bold, "artifacts: ", colors.Reset,
			"the build output is the ", colors.YellowBold, "same", colors.Reset,
			" as after the previous build (", formatDuration(time.Since(cachedHash.Timestamp)), " ago)",
		)
	}

	newCache := &ArtifactHashCache{
		Hash:      currentHash,
		Timestamp: time.Now(),
	}
	if err := SaveArtifactHashCache(store.Directory(), newCache); err != nil {
		logger.Warn("Failed to save artifact hash cache", err)
	}
}

// formatDuration formats a duration into a human-readable string.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%d seconds", int(d.Seconds()))
	}
	if d < time.Hour {
		minutes := int(d.Minutes())
		if minutes == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", minutes)
	}
	if d < 24*time.Hour {
		hours := int(d.Hours())
		if hours == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", hours)
	}
	days := int(d.Hours() / 24)
	if days == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", days)
}
