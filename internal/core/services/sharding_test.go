package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/pkgdex/internal/core/ports/driven"
)

func TestParseShardSpecEmpty(t *testing.T) {
	spec, err := ParseShardSpec("", 4)
	require.NoError(t, err)
	assert.Empty(t, spec.Shards)
	assert.Equal(t, 4, spec.OfShards)
}

func TestParseShardSpecSingletonsAndRanges(t *testing.T) {
	spec, err := ParseShardSpec("0-2,5", 8)
	require.NoError(t, err)
	assert.Equal(t, map[int]struct{}{0: {}, 1: {}, 2: {}, 5: {}}, spec.Shards)
}

func TestParseShardSpecInvalidTerm(t *testing.T) {
	_, err := ParseShardSpec("a-b", 4)
	assert.Error(t, err)
}

func TestParseShardSpecInvertedRange(t *testing.T) {
	_, err := ParseShardSpec("5-2", 4)
	assert.Error(t, err)
}

func TestShardSpecActive(t *testing.T) {
	spec, err := ParseShardSpec("0-2,5", 8)
	require.NoError(t, err)

	assert.True(t, spec.Active(0))
	assert.True(t, spec.Active(5))
	assert.True(t, spec.Active(13)) // 13 % 8 == 5
	assert.False(t, spec.Active(3))
}

func TestShardSpecActiveWithNoShardingRequested(t *testing.T) {
	spec, err := ParseShardSpec("", 0)
	require.NoError(t, err)
	assert.True(t, spec.Active(0))
	assert.True(t, spec.Active(999))
}

func TestRankCandidate(t *testing.T) {
	cases := []struct {
		name string
		dist driven.Distribution
		want int
	}{
		{"sdist", driven.Distribution{PackageType: "sdist"}, 10},
		{"py3 wheel", driven.Distribution{PackageType: "bdist_wheel", PythonTag: "py3"}, 5},
		{"py2.py3 wheel", driven.Distribution{PackageType: "bdist_wheel", PythonTag: "py2.py3"}, 4},
		{"abi3 wheel", driven.Distribution{PackageType: "bdist_wheel", PythonTag: "cp39-abi3"}, 2},
		{"cp-tagged wheel", driven.Distribution{PackageType: "bdist_wheel", PythonTag: "cp311"}, 1},
		{"other wheel", driven.Distribution{PackageType: "bdist_wheel", PythonTag: "jy2"}, 0},
		{"egg", driven.Distribution{PackageType: "bdist_egg"}, -1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, RankCandidate(tc.dist))
		})
	}
}
