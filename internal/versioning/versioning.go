// Package versioning implements the file naming used when sections are
// saved: either a new "_vNN" file per save or an in-place overwrite.
package versioning

import (
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Policy selects how saved files are named.
type Policy string

const (
	Increment Policy = "increment"
	InPlace   Policy = "in_place"
)

// ParsePolicy accepts the config spellings of a policy.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "increment", "increment_version":
		return Increment, nil
	case "in_place", "inplace", "in-place":
		return InPlace, nil
	}
	return "", fmt.Errorf("unknown save naming policy %q", s)
}

var suffix = regexp.MustCompile(`_v(\d+)$`)

// Split breaks path into its directory, its base name with any trailing
// "_vNN" removed, its extension and the version number (0 when absent).
func Split(path string) (dir, base, ext string, version int) {
	dir = filepath.Dir(path)
	ext = filepath.Ext(path)
	base = strings.TrimSuffix(filepath.Base(path), ext)
	if m := suffix.FindStringSubmatch(base); m != nil {
		version, _ = strconv.Atoi(m[1])
		base = base[:len(base)-len(m[0])]
	}
	return dir, base, ext, version
}

// ID returns the record id for a path: the file name without extension.
func ID(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

// Path returns where a save of source should go. For Increment it is
// "<base>_vNN<ext>" beside source with NN the given version, at least two
// digits. For InPlace it is source itself.
func Path(source string, policy Policy, version int) string {
	if policy == InPlace {
		return source
	}
	dir, base, ext, _ := Split(source)
	return filepath.Join(dir, fmt.Sprintf("%s_v%02d%s", base, version, ext))
}

// PlotPath returns the image path written beside a data file.
func PlotPath(dataPath string) string {
	return strings.TrimSuffix(dataPath, filepath.Ext(dataPath)) + ".png"
}

// Latest picks the candidate with the highest version that shares base and
// ext with path, skipping path itself. It reports false when none match.
func Latest(path string, candidates []string) (string, bool) {
	_, base, ext, _ := Split(path)
	type match struct {
		path    string
		version int
	}
	var matches []match
	for _, c := range candidates {
		if filepath.Clean(c) == filepath.Clean(path) {
			continue
		}
		_, cb, ce, v := Split(c)
		if cb != base || !strings.EqualFold(ce, ext) {
			continue
		}
		matches = append(matches, match{c, v})
	}
	if len(matches) == 0 {
		return "", false
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].version > matches[j].version })
	return matches[0].path, true
}
