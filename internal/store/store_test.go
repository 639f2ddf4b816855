package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexanderramin/chapterwise/internal/domain"
)

func TestMergeProgress_NilDeletes(t *testing.T) {
	dst := domain.UserData{"s_bio_1_a": 3.0, "note_bio_1_a": "x"}
	MergeProgress(dst, domain.UserData{"s_bio_1_a": 5, "note_bio_1_a": nil, "s_bio_2_a": 1})
	assert.Equal(t, domain.UserData{"s_bio_1_a": 5, "s_bio_2_a": 1}, dst)
}

func TestDecodeValue(t *testing.T) {
	assert.Equal(t, 3.0, DecodeValue("3"))
	assert.Equal(t, "hello", DecodeValue(`"hello"`))
	assert.Equal(t, "{broken", DecodeValue("{broken"))

	raw, err := EncodeValue(5)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDone, domain.ParseStatus(DecodeValue(raw)))
}

func TestSettingsDocument_RoundTrip(t *testing.T) {
	in := domain.Settings{
		Syllabus:      domain.Syllabus{"bio": {Key: "bio", Name: "Biology", Chapters: []domain.Chapter{{ID: "1", Name: "Cell", Paper: 1}}}},
		Weights:       domain.WeightMap{"lecture": 100},
		AcademicLevel: domain.LevelSSC,
	}
	raw, err := EncodeSettings(in)
	require.NoError(t, err)
	out, err := DecodeSettings(raw)
	require.NoError(t, err)
	assert.Equal(t, in, out)

	empty, err := DecodeSettings("")
	require.NoError(t, err)
	assert.Equal(t, domain.Settings{}, empty)

	_, err = DecodeSettings("{")
	assert.Error(t, err)
}

func TestHub_PublishAndCancel(t *testing.T) {
	h := NewHub()
	var a, b int
	cancelA := h.Listen("u1", func() { a++ })
	h.Listen("u1", func() { b++ })
	h.Listen("u2", func() { t.Fatal("wrong user notified") })

	h.Publish("u1")
	assert.Equal(t, 1, a)
	assert.Equal(t, 1, b)

	cancelA()
	cancelA()
	h.Publish("u1")
	assert.Equal(t, 1, a)
	assert.Equal(t, 2, b)
	assert.Equal(t, 1, h.Listeners("u1"))
}

func TestHub_Users(t *testing.T) {
	h := NewHub()
	cancel := h.Listen("u1", func() {})
	h.Listen("u2", func() {})
	assert.ElementsMatch(t, []string{"u1", "u2"}, h.Users())

	cancel()
	assert.Equal(t, []string{"u2"}, h.Users())
}
