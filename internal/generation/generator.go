// Package generation drafts a tailored resume through a fixed chain of model
// calls, each stage consuming the output of the ones before it.
package generation

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/jonathan/resume-tailor/internal/llm"
	"github.com/jonathan/resume-tailor/internal/prompts"
	"github.com/jonathan/resume-tailor/internal/types"
)

// Stage names one model call in the generation chain
type Stage string

// Generation stages in execution order
const (
	StageCompetencies Stage = "competencies"
	StageAlignment    Stage = "alignment"
	StageBullets      Stage = "bullets"
	StageSkills       Stage = "skills"
	StageConsistency  Stage = "consistency"
	StageAssembly     Stage = "assembly"
)

// Stages lists the generation stages in execution order
var Stages = []Stage{StageCompetencies, StageAlignment, StageBullets, StageSkills, StageConsistency, StageAssembly}

// Generator runs the drafting chain against a model gateway
type Generator struct {
	gateway   llm.Gateway
	maxTokens int
	log       logrus.FieldLogger
}

// New creates a generator. maxTokens of zero uses the gateway default.
func New(gateway llm.Gateway, maxTokens int, log logrus.FieldLogger) *Generator {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Generator{gateway: gateway, maxTokens: maxTokens, log: log}
}

// Generate drafts tailored resume sections from the resume and job description.
// Unusable model output is absorbed into Draft.Degradations; only a failed
// gateway call or a cancelled context aborts the chain.
func (g *Generator) Generate(ctx context.Context, resume, jobDescription string) (*types.Draft, error) {
	draft := &types.Draft{Sections: types.Sections{}}
	resume = g.guardInput("resume", resume)
	jobDescription = g.guardInput("job description", jobDescription)

	// 1. competency extraction
	description := prompts.Format(prompts.MustGet(prompts.TailoringFile, prompts.KeyCompetencies),
		map[string]string{"MaxItems": strconv.Itoa(llm.MaxCompetencyItems)})
	out, err := g.call(ctx, StageCompetencies, llm.BuildExtractionPrompt(llm.CompetencySchema(description), jobDescription))
	if err != nil {
		return nil, err
	}
	var structured bool
	draft.Competencies, structured = parseCompetencies(out)
	if !structured {
		draft.Degrade(string(StageCompetencies), "competency output was not a JSON object, kept raw text")
	}
	competencies := competencyText(draft.Competencies)

	// 2. experience alignment
	out, err = g.render(ctx, StageAlignment, prompts.KeyAlignment, map[string]string{
		"Competencies": competencies,
		"Resume":       resume,
	})
	if err != nil {
		return nil, err
	}
	draft.AlignmentNotes = out.Raw
	if out.Raw == "" {
		draft.Degrade(string(StageAlignment), "empty alignment response")
	}

	// 3. bullet rewriting
	out, err = g.render(ctx, StageBullets, prompts.KeyBullets, map[string]string{
		"Alignment": draft.AlignmentNotes,
		"Resume":    resume,
	})
	if err != nil {
		return nil, err
	}
	draft.RewrittenExperience = out.Raw
	if out.Raw == "" {
		draft.Degrade(string(StageBullets), "empty rewrite response")
	}

	// 4. skill harmonization
	keywords := strings.Join(draft.Competencies.Keywords, ", ")
	if keywords == "" {
		keywords = competencies
	}
	out, err = g.render(ctx, StageSkills, prompts.KeySkills, map[string]string{
		"Keywords": keywords,
		"Resume":   resume,
	})
	if err != nil {
		return nil, err
	}
	draft.HarmonizedSkills = parseSkills(out)
	if len(draft.HarmonizedSkills) == 0 {
		draft.Degrade(string(StageSkills), "no skills in harmonization response")
	}
	skills := strings.Join(draft.HarmonizedSkills, ", ")

	// 5. consistency pass
	out, err = g.render(ctx, StageConsistency, prompts.KeyConsistency, map[string]string{
		"Resume":     resume,
		"Experience": draft.RewrittenExperience,
		"Skills":     skills,
	})
	if err != nil {
		return nil, err
	}
	flags, ok := parseRiskFlags(out)
	draft.ConsistencyNotes = flags
	if !ok {
		draft.Degrade(string(StageConsistency), "consistency output was not a JSON list, kept raw text")
	}

	// 6. final assembly
	assembly, err := prompts.Render(prompts.TailoringFile, prompts.KeyAssembly, map[string]string{
		"Competencies": competencies,
		"Experience":   draft.RewrittenExperience,
		"Skills":       skills,
		"Consistency":  riskFlagText(flags),
		"Resume":       resume,
	})
	if err != nil {
		return nil, err
	}
	out, err = g.call(ctx, StageAssembly, llm.BuildExtractionPrompt(llm.AssemblySchema(assembly), jobDescription))
	if err != nil {
		return nil, err
	}
	sections, ok := parseSections(out)
	if !ok {
		sections = types.Sections{types.SectionSummary: types.Scalar(out.Raw)}
		draft.Degrade(string(StageAssembly), "final assembly was not a JSON object, used raw text as Summary")
	}
	draft.Sections = sections

	return draft, nil
}

func (g *Generator) render(ctx context.Context, stage Stage, key string, data map[string]string) (llm.Output, error) {
	prompt, err := prompts.Render(prompts.TailoringFile, key, data)
	if err != nil {
		return llm.Output{}, err
	}
	return g.call(ctx, stage, prompt)
}

func (g *Generator) call(ctx context.Context, stage Stage, prompt string) (llm.Output, error) {
	log := g.log.WithField("generation_stage", stage)
	start := time.Now()

	text, err := g.gateway.Generate(ctx, prompt, g.maxTokens)
	if err != nil {
		log.WithError(err).Warn("model call failed")
		return llm.Output{}, &StageError{Stage: stage, Cause: err}
	}

	out := llm.ParseOutput(text)
	log.WithFields(logrus.Fields{
		"duration":     time.Since(start),
		"output_kind":  out.Kind.String(),
		"output_bytes": len(out.Raw),
	}).Debug("model call complete")
	return out, nil
}

func parseCompetencies(out llm.Output) (types.Competencies, bool) {
	if !out.IsStructured() || !out.JSON.IsObject() {
		return types.Competencies{Raw: out.Raw}, false
	}
	limit := llm.MaxCompetencyItems
	return types.Competencies{
		Core:      out.Strings("core_competencies", limit),
		Mandatory: out.Strings("mandatory_qualifications", limit),
		Preferred: out.Strings("preferred_qualifications", limit),
		Keywords:  out.Strings("keywords", limit),
	}, true
}

func competencyText(c types.Competencies) string {
	if c.Raw != "" {
		return c.Raw
	}
	var sb strings.Builder
	for _, group := range []struct {
		label string
		items []string
	}{
		{"Core competencies", c.Core},
		{"Mandatory qualifications", c.Mandatory},
		{"Preferred qualifications", c.Preferred},
		{"Keywords", c.Keywords},
	} {
		if len(group.items) > 0 {
			fmt.Fprintf(&sb, "%s: %s\n", group.label, strings.Join(group.items, ", "))
		}
	}
	return strings.TrimSpace(sb.String())
}

func parseSkills(out llm.Output) []string {
	if out.IsStructured() && out.JSON.IsArray() {
		var items []string
		for _, v := range out.JSON.Array() {
			if s := strings.TrimSpace(v.String()); s != "" {
				items = append(items, s)
			}
		}
		return llm.SplitList(strings.Join(items, "\n"))
	}
	return llm.SplitList(out.Raw)
}

// parseRiskFlags accepts a JSON array of flags, or an object wrapping one.
// Prose is kept as a single flag and reported as not ok.
func parseRiskFlags(out llm.Output) ([]types.RiskFlag, bool) {
	if !out.IsStructured() {
		if out.Raw == "" {
			return nil, true
		}
		return []types.RiskFlag{{Issue: out.Raw}}, false
	}

	list := out.JSON
	if list.IsObject() {
		list = gjson.Result{}
		out.JSON.ForEach(func(_, v gjson.Result) bool {
			if v.IsArray() {
				list = v
				return false
			}
			return true
		})
	}
	if !list.IsArray() {
		return []types.RiskFlag{{Issue: out.Raw}}, false
	}

	var flags []types.RiskFlag
	for _, v := range list.Array() {
		flag := types.RiskFlag{
			Issue:          strings.TrimSpace(v.Get("issue").String()),
			Recommendation: strings.TrimSpace(v.Get("recommendation").String()),
		}
		if v.Type == gjson.String {
			flag.Issue = strings.TrimSpace(v.String())
		}
		if flag.Issue != "" || flag.Recommendation != "" {
			flags = append(flags, flag)
		}
	}
	return flags, true
}

func riskFlagText(flags []types.RiskFlag) string {
	if len(flags) == 0 {
		return "None."
	}
	lines := make([]string, 0, len(flags))
	for _, f := range flags {
		line := "- " + f.Issue
		if f.Recommendation != "" {
			line += " (" + f.Recommendation + ")"
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// parseSections reads the assembled resume object. Section names matching a
// required section case-insensitively take its canonical spelling.
func parseSections(out llm.Output) (types.Sections, bool) {
	if !out.IsStructured() || !out.JSON.IsObject() {
		return nil, false
	}

	sections := types.Sections{}
	out.JSON.ForEach(func(k, v gjson.Result) bool {
		name := canonicalSection(k.String())
		var value types.SectionValue
		switch {
		case v.Type == gjson.Null:
			return true
		case v.Type == gjson.String || v.IsArray():
			if err := value.UnmarshalJSON([]byte(v.Raw)); err != nil {
				value = types.Scalar(v.String())
			}
		case v.IsObject():
			value = types.Scalar(v.Raw)
		default:
			value = types.Scalar(v.String())
		}
		sections[name] = value
		return true
	})
	return sections, true
}

func canonicalSection(name string) string {
	name = strings.TrimSpace(name)
	for _, required := range types.RequiredSections {
		if strings.EqualFold(name, required) {
			return required
		}
	}
	return name
}
