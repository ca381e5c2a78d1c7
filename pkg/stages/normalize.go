package stages

import (
	"encoding/json"
	"strings"

	"github.com/ekaya-inc/ideaflow/pkg/jsonutil"
	"github.com/ekaya-inc/ideaflow/pkg/models"
)

// token lowercases s and folds spaces and underscores to hyphens, so
// "Build Now" and "build_now" both become "build-now".
func token(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer(" ", "-", "_", "-").Replace(s)
	return strings.Trim(s, "-.")
}

var categorySynonyms = map[string]models.IdeaCategory{
	"feature":       models.CategoryFeature,
	"enhancement":   models.CategoryFeature,
	"improvement":   models.CategoryFeature,
	"product":       models.CategoryProduct,
	"new-product":   models.CategoryProduct,
	"standalone":    models.CategoryProduct,
	"integration":   models.CategoryIntegration,
	"connector":     models.CategoryIntegration,
	"research":      models.CategoryResearch,
	"investigation": models.CategoryResearch,
	"experiment":    models.CategoryResearch,
}

var stackFitSynonyms = map[string]models.StackFit{
	"perfect":           models.StackFitPerfect,
	"excellent":         models.StackFitPerfect,
	"good":              models.StackFitGood,
	"great":             models.StackFitGood,
	"requires-learning": models.StackFitRequiresLearning,
	"needs-learning":    models.StackFitRequiresLearning,
	"learning-required": models.StackFitRequiresLearning,
	"learning":          models.StackFitRequiresLearning,
	"blocker":           models.StackFitBlocker,
	"blocked":           models.StackFitBlocker,
	"blocking":          models.StackFitBlocker,
}

var capabilitiesSynonyms = map[string]models.CapabilitiesFit{
	"strong":     models.CapabilitiesFitStrong,
	"high":       models.CapabilitiesFitStrong,
	"developing": models.CapabilitiesFitDeveloping,
	"medium":     models.CapabilitiesFitDeveloping,
	"moderate":   models.CapabilitiesFitDeveloping,
	"partial":    models.CapabilitiesFitDeveloping,
	"missing":    models.CapabilitiesFitMissing,
	"low":        models.CapabilitiesFitMissing,
	"weak":       models.CapabilitiesFitMissing,
	"none":       models.CapabilitiesFitMissing,
}

var recommendationSynonyms = map[string]models.Recommendation{
	"build-now":         models.RecommendationBuildNow,
	"build":             models.RecommendationBuildNow,
	"build-immediately": models.RecommendationBuildNow,
	"now":               models.RecommendationBuildNow,
	"build-later":       models.RecommendationBuildLater,
	"later":             models.RecommendationBuildLater,
	"defer":             models.RecommendationBuildLater,
	"partner":           models.RecommendationPartner,
	"partnership":       models.RecommendationPartner,
	"buy":               models.RecommendationPartner,
	"skip":              models.RecommendationSkip,
	"reject":            models.RecommendationSkip,
	"abandon":           models.RecommendationSkip,
	"no":                models.RecommendationSkip,
}

func lookup[T any](synonyms map[string]T, raw json.RawMessage) (T, string, bool) {
	s := jsonutil.FlexibleStringValue(raw)
	v, ok := synonyms[token(s)]
	return v, s, ok
}

// fields is a decoded JSON object whose keys are matched case-insensitively.
type fields map[string]json.RawMessage

func decodeFields(raw json.RawMessage) fields {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return fields{}
	}
	out := make(fields, len(m))
	for k, v := range m {
		out[strings.ToLower(k)] = v
	}
	return out
}

// get returns the first present key, so alternative spellings a model
// may use can be listed after the canonical one.
func (f fields) get(keys ...string) json.RawMessage {
	for _, k := range keys {
		if v, ok := f[k]; ok && string(v) != "null" {
			return v
		}
	}
	return nil
}

func (f fields) object(keys ...string) fields {
	return decodeFields(f.get(keys...))
}
