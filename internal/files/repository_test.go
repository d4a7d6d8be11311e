package files

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSearchPatternEscapesLikeMetacharacters(t *testing.T) {
	require.Equal(t, `100\%`, likeEscaper.Replace("100%"))
	require.Equal(t, `unit\_3`, likeEscaper.Replace("unit_3"))
	require.Equal(t, `a\\b`, likeEscaper.Replace(`a\b`))
	require.Equal(t, "plain", likeEscaper.Replace("plain"))
}
