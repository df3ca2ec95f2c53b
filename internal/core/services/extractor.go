package services

import (
	"github.com/custodia-labs/vulnsync/internal/core/domain"
	"github.com/custodia-labs/vulnsync/internal/logger"
)

// DefaultAssessmentTitle marks the secondary-assessment block carrying
// scoring data.
const DefaultAssessmentTitle = "CISA ADP Vulnrichment"

// SSVC option keys inside an "other" block of type ssvc.
const (
	optionExploitation    = "Exploitation"
	optionAutomatable     = "Automatable"
	optionTechnicalImpact = "Technical Impact"
)

// ExtractorConfig holds the lookup tables the extractor works from.
type ExtractorConfig struct {
	// AssessmentTitle selects the secondary-assessment block by title.
	AssessmentTitle string

	// VersionPreference is the most-recent-first CVSS version order.
	VersionPreference []domain.CVSSVersion

	// Codes maps vector-string codes to sub-metric categories.
	Codes domain.CodeTable
}

// DefaultExtractorConfig returns the standard configuration.
func DefaultExtractorConfig() ExtractorConfig {
	return ExtractorConfig{
		AssessmentTitle:   DefaultAssessmentTitle,
		VersionPreference: domain.DefaultVersionPreference(),
		Codes:             domain.DefaultCodeTable(),
	}
}

// Extractor maps one advisory to one normalized record.
// It holds no mutable state and is safe for concurrent use.
type Extractor struct {
	cfg          ExtractorConfig
	decodeVector func(string, domain.CodeTable) (map[domain.SubMetric]domain.Category, error)
}

// NewExtractor creates an extractor. Zero-valued config fields fall back to
// the defaults.
func NewExtractor(cfg ExtractorConfig) *Extractor {
	def := DefaultExtractorConfig()
	if cfg.AssessmentTitle == "" {
		cfg.AssessmentTitle = def.AssessmentTitle
	}
	if len(cfg.VersionPreference) == 0 {
		cfg.VersionPreference = def.VersionPreference
	}
	if cfg.Codes == nil {
		cfg.Codes = def.Codes
	}
	return &Extractor{cfg: cfg, decodeVector: DecodeVector}
}

// ExtractDocument decodes raw advisory bytes and extracts them.
func (e *Extractor) ExtractDocument(data []byte) (domain.Record, error) {
	adv, err := domain.ParseAdvisory(data)
	if err != nil {
		return domain.Record{}, err
	}
	return e.Extract(adv)
}

// Extract normalizes an advisory.
//
// The secondary-assessment (ADP) block titled AssessmentTitle is read first.
// The primary-reporter (CNA) namespace then fills whatever is still empty,
// except affected products and versions which accumulate across both.
// domain.ErrUnextractable is returned when neither namespace is present.
func (e *Extractor) Extract(adv *domain.Advisory) (domain.Record, error) {
	if adv == nil || (!adv.Containers.HasADP() && !adv.Containers.HasCNA()) {
		return domain.Record{}, domain.ErrUnextractable
	}

	rec := domain.NewRecord()
	if md := adv.Metadata; md != nil {
		rec.ID = md.ID.String()
		rec.PublishedDate = domain.NormalizeTimestamp(md.DatePublished.String())
		rec.UpdatedDate = domain.NormalizeTimestamp(md.DateUpdated.String())
	}

	if adv.Containers.HasADP() {
		if block := e.assessmentBlock(adv.Containers.ADP); block != nil {
			if cvss := e.selectCVSS(block.Metrics); cvss != nil {
				e.applyCVSS(&rec, cvss, false)
			}
			applyOther(&rec, block.Metrics)
			applyProblemTypes(&rec, block.ProblemTypes, false)
			applyAffected(&rec, block.Affected)
		} else {
			logger.Debug("%s: no %q block among %d adp containers", rec.ID, e.cfg.AssessmentTitle, len(adv.Containers.ADP))
		}
	}

	if cna := adv.Containers.CNA; cna != nil {
		if cvss := e.selectCVSS(cna.Metrics); cvss != nil {
			e.applyCVSS(&rec, cvss, true)
		}
		applyProblemTypes(&rec, cna.ProblemTypes, true)
		applyAffected(&rec, cna.Affected)
	}

	return rec, nil
}

func (e *Extractor) assessmentBlock(adp []domain.Container) *domain.Container {
	for i := range adp {
		if adp[i].Title.Present && adp[i].Title.Value == e.cfg.AssessmentTitle {
			return &adp[i]
		}
	}
	return nil
}

// selectCVSS returns the block of the first preferred version present
// anywhere in the list. Later versions are ignored even if richer.
func (e *Extractor) selectCVSS(metrics domain.Metrics) *domain.CVSS {
	for _, v := range e.cfg.VersionPreference {
		for _, m := range metrics {
			if b := m.Block(v); b != nil {
				return b
			}
		}
	}
	return nil
}

// applyCVSS copies the block's fields into rec, then decodes the vector
// string for any sub-metric still empty. With fillOnly set, fields that
// already hold a value are left alone.
func (e *Extractor) applyCVSS(rec *domain.Record, cvss *domain.CVSS, fillOnly bool) {
	set(&rec.CVSSVersion, cvss.Version, fillOnly)
	set(&rec.BaseSeverity, cvss.BaseSeverity, fillOnly)
	set(&rec.BaseScore, cvss.BaseScore, fillOnly)
	for _, m := range domain.SubMetrics() {
		set(rec.SubMetric(m), cvss.SubMetric(m), fillOnly)
	}

	missing := rec.MissingSubMetrics()
	if len(missing) == 0 || cvss.VectorString.Value == "" {
		return
	}

	decoded, err := e.decodeVector(cvss.VectorString.Value, e.cfg.Codes)
	if err != nil {
		logger.Warn("%s: %v", rec.ID, err)
		return
	}
	logger.Debug("%s: filling %d sub-metrics from vector %s", rec.ID, len(missing), cvss.VectorString.Value)
	for _, m := range missing {
		if cat := decoded[m]; cat != domain.CategoryUnknown {
			*rec.SubMetric(m) = string(cat)
		}
	}
}

// applyOther reads the ssvc and kev "other" blocks of a metrics list.
func applyOther(rec *domain.Record, metrics domain.Metrics) {
	for _, m := range metrics {
		if m.Other == nil {
			continue
		}
		content := m.Other.Content
		switch m.Other.Type.Value {
		case domain.OtherTypeSSVC:
			if content == nil {
				continue
			}
			rec.SSVCTimestamp = content.Timestamp.String()
			for _, opt := range content.Options {
				if f, ok := opt[optionExploitation]; ok {
					rec.SSVCExploitation = f.String()
				}
				if f, ok := opt[optionAutomatable]; ok {
					rec.SSVCAutomatable = f.String()
				}
				if f, ok := opt[optionTechnicalImpact]; ok {
					rec.SSVCTechnicalImpact = f.String()
				}
			}
			ssvc := domain.SSVC{
				Exploitation:    rec.SSVCExploitation,
				Automatable:     rec.SSVCAutomatable,
				TechnicalImpact: rec.SSVCTechnicalImpact,
			}
			if ssvc.Complete() {
				rec.SSVCDecision = string(ssvc.Decision())
			}
		case domain.OtherTypeKEV:
			rec.KnownExploited = true
			if content != nil {
				rec.KnownExploitedDate = content.DateAdded.String()
			}
		}
	}
}

// applyProblemTypes takes the first CWE-typed description in the list.
func applyProblemTypes(rec *domain.Record, problemTypes []domain.ProblemType, fillOnly bool) {
	if fillOnly && rec.CWENumber != "" {
		return
	}
	for _, pt := range problemTypes {
		for _, d := range pt.Descriptions {
			if d.Type.Value == "CWE" {
				rec.CWENumber = d.CWEID.String()
				rec.CWEDescription = d.Description.String()
				return
			}
		}
	}
}

// applyAffected appends products and versions in document order. The vendor
// is overwritten by every entry, so only the last one survives.
func applyAffected(rec *domain.Record, affected []domain.Affected) {
	for _, a := range affected {
		rec.ImpactedVendor = a.Vendor.String()
		rec.ImpactedProducts = append(rec.ImpactedProducts, a.Product.String())
		for _, v := range a.Versions {
			rec.VulnerableVersions = append(rec.VulnerableVersions, v.Version.String())
		}
	}
}

func set(dst *string, f domain.Field, fillOnly bool) {
	if !f.Present {
		return
	}
	if fillOnly && *dst != "" {
		return
	}
	*dst = f.Value
}
