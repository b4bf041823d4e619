package analyzer

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ziadkadry99/localsort-core/internal/config"
)

// sigVersion is the cache-key signature schema version. Both
// orchestrators use the document form (folder descriptions included),
// resolving the image/document divergence into one shared signature.
const sigVersion = "v2"

// smartFolderSignature builds the "id:name:path:description" pairs,
// sorted and pipe-joined.
func smartFolderSignature(folders []config.SmartFolder) string {
	pairs := make([]string, len(folders))
	for i, f := range folders {
		pairs[i] = fmt.Sprintf("%s:%s:%s:%s", f.ID, f.Name, f.Path, f.Description)
	}
	sort.Strings(pairs)
	return strings.Join(pairs, "|")
}

// signature builds the analyzer's cache key:
// <SIG_VERSION>|<modelName>|<smartFolderSig>|<absolutePath>|<sizeBytes>|<mtimeMs>
func signature(modelName string, folders []config.SmartFolder, path string, size int64, mtimeMs int64) string {
	return fmt.Sprintf("%s|%s|%s|%s|%d|%d",
		sigVersion, modelName, smartFolderSignature(folders), path, size, mtimeMs)
}

// cacheContentHash digests extracted content for the step-8 dedup key,
// so two files with identical text share one in-flight model call.
func cacheContentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:8])
}

// CanonicalFileID computes the canonical_file_id a queue item is keyed
// by: a stable hash of the file's normalized absolute path and kind,
// prefixed per the queue's item-type namespace convention so Type()
// classifies it as a file item.
func CanonicalFileID(path string, kind Kind) string {
	norm := filepath.ToSlash(filepath.Clean(path))
	sum := sha256.Sum256([]byte(string(kind) + "|" + norm))
	return "file:" + hex.EncodeToString(sum[:])
}
