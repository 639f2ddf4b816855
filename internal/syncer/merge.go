package syncer

import (
	"maps"

	"github.com/alexanderramin/chapterwise/internal/domain"
)

// MergePolicy is how one settings field reconciles a remote snapshot with
// local state.
type MergePolicy string

const (
	// KeepLocalIfRemoteEmpty takes the remote value unless it is empty and
	// the local one is not.
	KeepLocalIfRemoteEmpty MergePolicy = "keep-local-if-remote-empty"
	// PreferRemote takes any non-empty remote value.
	PreferRemote MergePolicy = "prefer-remote"
	// Union merges both maps key by key; remote wins on conflicts.
	Union MergePolicy = "union"
)

type fieldRule struct {
	policy MergePolicy
	merge  func(dst *domain.Settings, local, remote domain.Settings)
}

// mergeRules enumerates every recognized settings field. A field missing
// here is not carried across a remote merge.
var mergeRules = map[string]fieldRule{
	"syllabus": {KeepLocalIfRemoteEmpty, func(d *domain.Settings, l, r domain.Settings) {
		d.Syllabus = keepLocalMap(l.Syllabus, r.Syllabus)
	}},
	"trackableItems": {KeepLocalIfRemoteEmpty, func(d *domain.Settings, l, r domain.Settings) {
		d.TrackableItems = keepLocalSlice(l.TrackableItems, r.TrackableItems)
	}},
	"subjectConfigs": {KeepLocalIfRemoteEmpty, func(d *domain.Settings, l, r domain.Settings) {
		d.SubjectConfigs = keepLocalMap(l.SubjectConfigs, r.SubjectConfigs)
	}},
	"weights": {KeepLocalIfRemoteEmpty, func(d *domain.Settings, l, r domain.Settings) {
		d.Weights = keepLocalMap(l.Weights, r.Weights)
	}},
	"subjectWeights": {KeepLocalIfRemoteEmpty, func(d *domain.Settings, l, r domain.Settings) {
		d.SubjectWeights = keepLocalMap(l.SubjectWeights, r.SubjectWeights)
	}},
	"subjectProgressItems": {KeepLocalIfRemoteEmpty, func(d *domain.Settings, l, r domain.Settings) {
		d.SubjectProgressItems = keepLocalMap(l.SubjectProgressItems, r.SubjectProgressItems)
	}},
	"subjectProgressWeights": {KeepLocalIfRemoteEmpty, func(d *domain.Settings, l, r domain.Settings) {
		d.SubjectProgressWeights = keepLocalMap(l.SubjectProgressWeights, r.SubjectProgressWeights)
	}},
	"progressBars": {KeepLocalIfRemoteEmpty, func(d *domain.Settings, l, r domain.Settings) {
		d.ProgressBars = keepLocalSlice(l.ProgressBars, r.ProgressBars)
	}},
	"customNames": {Union, func(d *domain.Settings, l, r domain.Settings) {
		d.CustomNames = unionMap(l.CustomNames, r.CustomNames)
	}},
	"syllabusOpenState": {Union, func(d *domain.Settings, l, r domain.Settings) {
		d.SyllabusOpenState = unionMap(l.SyllabusOpenState, r.SyllabusOpenState)
	}},
	"academicLevel": {PreferRemote, func(d *domain.Settings, l, r domain.Settings) {
		d.AcademicLevel = preferRemote(l.AcademicLevel, r.AcademicLevel)
	}},
	"countdownTarget": {PreferRemote, func(d *domain.Settings, l, r domain.Settings) {
		d.CountdownTarget = preferRemote(l.CountdownTarget, r.CountdownTarget)
	}},
	"countdownLabel": {PreferRemote, func(d *domain.Settings, l, r domain.Settings) {
		d.CountdownLabel = preferRemote(l.CountdownLabel, r.CountdownLabel)
	}},
	"theme": {PreferRemote, func(d *domain.Settings, l, r domain.Settings) {
		d.Theme = preferRemote(l.Theme, r.Theme)
	}},
	"glowColor": {PreferRemote, func(d *domain.Settings, l, r domain.Settings) {
		d.GlowColor = preferRemote(l.GlowColor, r.GlowColor)
	}},
}

// MergePolicies returns the policy of every recognized field, keyed by its
// JSON name.
func MergePolicies() map[string]MergePolicy {
	out := make(map[string]MergePolicy, len(mergeRules))
	for name, r := range mergeRules {
		out[name] = r.policy
	}
	return out
}

// MergeSettings reconciles a remote settings snapshot into local state field
// by field. A richer local structure is never replaced by an empty remote
// one. Neither input is modified and the result shares no state with them.
func MergeSettings(local, remote domain.Settings) domain.Settings {
	l, r := local.Clone(), remote.Clone()
	var out domain.Settings
	for _, rule := range mergeRules {
		rule.merge(&out, l, r)
	}
	return out
}

func keepLocalMap[M ~map[K]V, K comparable, V any](local, remote M) M {
	if len(remote) == 0 && len(local) > 0 {
		return local
	}
	if remote == nil {
		return local
	}
	return remote
}

func keepLocalSlice[S ~[]E, E any](local, remote S) S {
	if len(remote) == 0 && len(local) > 0 {
		return local
	}
	if remote == nil {
		return local
	}
	return remote
}

func unionMap[M ~map[K]V, K comparable, V any](local, remote M) M {
	if local == nil && remote == nil {
		return nil
	}
	out := make(M, len(local)+len(remote))
	maps.Copy(out, local)
	maps.Copy(out, remote)
	return out
}

func preferRemote[T comparable](local, remote T) T {
	var zero T
	if remote != zero {
		return remote
	}
	return local
}
