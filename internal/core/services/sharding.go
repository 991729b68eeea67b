package services

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/custodia-labs/pkgdex/internal/core/ports/driven"
	"github.com/custodia-labs/pkgdex/internal/core/ports/driving"
)

// ParseShardSpec parses the --shard grammar of §6.2:
//
//	spec := term ("," term)*
//	term := int | int "-" int
//
// e.g. "0-2,5" selects shards {0, 1, 2, 5}.
func ParseShardSpec(spec string, ofShards int) (driving.ShardSpec, error) {
	out := driving.ShardSpec{Shards: map[int]struct{}{}, OfShards: ofShards}
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return out, nil
	}

	for _, term := range strings.Split(spec, ",") {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		if lo, hi, ok := strings.Cut(term, "-"); ok {
			start, err := strconv.Atoi(strings.TrimSpace(lo))
			if err != nil {
				return driving.ShardSpec{}, fmt.Errorf("invalid shard term %q: %w", term, err)
			}
			end, err := strconv.Atoi(strings.TrimSpace(hi))
			if err != nil {
				return driving.ShardSpec{}, fmt.Errorf("invalid shard term %q: %w", term, err)
			}
			if end < start {
				return driving.ShardSpec{}, fmt.Errorf("invalid shard range %q: end before start", term)
			}
			for s := start; s <= end; s++ {
				out.Shards[s] = struct{}{}
			}
			continue
		}

		n, err := strconv.Atoi(term)
		if err != nil {
			return driving.ShardSpec{}, fmt.Errorf("invalid shard term %q: %w", term, err)
		}
		out.Shards[n] = struct{}{}
	}
	return out, nil
}

// RankCandidate scores a distribution for §4.F's "prefer the most portable
// build" rule, higher is better:
//
//	sdist               10
//	py3 wheel            5
//	py2.py3 wheel         4
//	abi3 wheel            2
//	cp-tagged wheel       1
//	other wheel           0
//	anything else        -1
func RankCandidate(d driven.Distribution) int {
	if d.PackageType == "sdist" {
		return 10
	}
	if d.PackageType != "bdist_wheel" {
		return -1
	}
	switch {
	case d.PythonTag == "py3":
		return 5
	case d.PythonTag == "py2.py3":
		return 4
	case strings.Contains(d.PythonTag, "abi3"):
		return 2
	case strings.HasPrefix(d.PythonTag, "cp"):
		return 1
	default:
		return 0
	}
}
