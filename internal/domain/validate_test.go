package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateWeightEdit(t *testing.T) {
	tests := []struct {
		name    string
		weights WeightMap
		wantErr bool
	}{
		{"exact", WeightMap{"lecture": 60, "ps_a": 40}, false},
		{"within tolerance", WeightMap{"a": 33.333, "b": 33.333, "c": 33.333}, false},
		{"short", WeightMap{"a": 50, "b": 40}, true},
		{"over", WeightMap{"a": 100, "b": 1}, true},
		{"negative", WeightMap{"a": 110, "b": -10}, true},
		{"nan", WeightMap{"a": math.NaN()}, true},
		{"empty", WeightMap{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateWeightEdit(tt.weights)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateWeightEdit_SumErrorIsSentinel(t *testing.T) {
	assert.ErrorIs(t, ValidateWeightEdit(WeightMap{"a": 10}), ErrWeightSum)
}

func TestChapter_Validate(t *testing.T) {
	assert.NoError(t, Chapter{ID: "3", Name: "Cell", Paper: 1}.Validate())
	assert.Error(t, Chapter{ID: "3", Name: "Cell", Paper: 3}.Validate())
	assert.Error(t, Chapter{ID: "3_a", Name: "Cell", Paper: 1}.Validate())
	assert.Error(t, Chapter{ID: "", Name: "Cell", Paper: 1}.Validate())
}

func TestSubject_ValidateDivesIntoChapters(t *testing.T) {
	ok := Subject{Key: "bio", Name: "Biology", Chapters: []Chapter{{ID: "1", Name: "Cell", Paper: 1}}}
	assert.NoError(t, ok.Validate())

	bad := ok
	bad.Chapters = []Chapter{{ID: "1", Name: "", Paper: 1}}
	assert.Error(t, bad.Validate())

	underscored := ok
	underscored.Key = "bio_1"
	assert.Error(t, underscored.Validate())
}

func TestTrackableItemAndBar_Validate(t *testing.T) {
	assert.NoError(t, TrackableItem{Key: "custom_col_17", Name: "Extra"}.Validate())
	assert.Error(t, TrackableItem{Key: "", Name: "Extra"}.Validate())

	assert.NoError(t, ProgressBar{Name: "Core", Items: []string{"lecture"}}.Validate())
	assert.Error(t, ProgressBar{Name: "Core"}.Validate())
}
