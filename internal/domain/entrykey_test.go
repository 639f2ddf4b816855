package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEntryKey_RoundTrip(t *testing.T) {
	k, err := ParseEntryKey("s_bio_3_mainbook")
	require.NoError(t, err)
	assert.Equal(t, EntryKey{SubjectID: "bio", ChapterID: "3", ItemKey: "mainbook"}, k)
	assert.Equal(t, "s_bio_3_mainbook", k.String())
}

func TestParseEntryKey_ItemKeyWithUnderscores(t *testing.T) {
	k, err := ParseEntryKey("s_bio_3_custom_col_17")
	require.NoError(t, err)
	assert.Equal(t, "bio", k.SubjectID)
	assert.Equal(t, "3", k.ChapterID)
	assert.Equal(t, "custom_col_17", k.ItemKey)
	assert.Equal(t, "s_bio_3_custom_col_17", k.String())
}

func TestParseEntryKey_Malformed(t *testing.T) {
	for _, raw := range []string{"", "s_", "s_bio", "s_bio_3", "s_bio_3_", "x_bio_3_a", "s__3_a", "bio_3_a"} {
		_, err := ParseEntryKey(raw)
		assert.ErrorIs(t, err, ErrMalformedKey, "raw=%q", raw)
	}
}

func TestEntryKey_Companions(t *testing.T) {
	k := NewEntryKey("phy", ChapterID("12"), "ps_a")
	assert.Equal(t, "s_phy_12_ps_a", k.String())
	assert.Equal(t, "timestamp_phy_12_ps_a", k.TimestampKey())
	assert.Equal(t, "note_phy_12_ps_a", k.NoteKey())
}

func TestParseCompanionKey(t *testing.T) {
	prefix, k, err := ParseCompanionKey("timestamp_phy_12_ps_a")
	require.NoError(t, err)
	assert.Equal(t, TimestampPrefix, prefix)
	assert.Equal(t, "ps_a", k.ItemKey)

	prefix, k, err = ParseCompanionKey("note_chem_1_lecture")
	require.NoError(t, err)
	assert.Equal(t, NotePrefix, prefix)
	assert.Equal(t, "chem", k.SubjectID)

	_, _, err = ParseCompanionKey("s_chem_1_lecture")
	assert.ErrorIs(t, err, ErrMalformedKey)
}
