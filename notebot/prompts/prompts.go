package prompts

import (
	"strings"

	"github.com/magiconair/properties"
	"go.uber.org/zap"

	"notebot/notebot/utils/logging"
)

const (
	DefaultEnrichment = `Analyze this note and provide a brief summary (max 1 sentence) and 3 relevant tags.
Return JSON format: {"summary": "...", "tags": ["tag1", "tag2", "tag3"]}

Note: {note}

JSON:`

	DefaultAnalysis = `Based on these notes, provide a summary of main topics and 3 actionable suggestions:

{notes}

Analysis:`
)

// Templates holds the prompt text sent to the generative model. {note} and
// {notes} are replaced with user content.
type Templates struct {
	Enrichment string
	Analysis   string
}

func Defaults() *Templates {
	return &Templates{Enrichment: DefaultEnrichment, Analysis: DefaultAnalysis}
}

// Load reads overrides from a .properties file (keys enrichment_prompt and
// analysis_prompt). An empty path or unreadable file yields the defaults.
func Load(path string) *Templates {
	t := Defaults()
	if path == "" {
		return t
	}
	props, err := properties.LoadFile(path, properties.UTF8)
	if err != nil {
		logging.AppLogger.Error("Prompt file load error", zap.String("path", path), zap.Error(err))
		return t
	}
	// templates are written on one line with literal \n separators
	unescape := strings.NewReplacer(`\n`, "\n")
	t.Enrichment = unescape.Replace(props.GetString("enrichment_prompt", t.Enrichment))
	t.Analysis = unescape.Replace(props.GetString("analysis_prompt", t.Analysis))
	return t
}

func (t *Templates) EnrichmentPrompt(note string) string {
	return strings.ReplaceAll(t.Enrichment, "{note}", note)
}

func (t *Templates) AnalysisPrompt(notes string) string {
	return strings.ReplaceAll(t.Analysis, "{notes}", notes)
}
