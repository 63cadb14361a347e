package domain

import (
	"fmt"
	"regexp"
	"strings"
)

// Feature names a gateable capability.
type Feature string

const (
	FeatureDocumentUpload        Feature = "document_upload"
	FeatureCertificateExtraction Feature = "certificate_extraction"
	FeaturePatientRecords        Feature = "patient_records"
	FeatureFitnessTracking       Feature = "fitness_tracking"
	FeatureSimpleCharts          Feature = "simple_charts"
	FeatureBasicReports          Feature = "basic_reports"

	FeatureTrendAnalysis   Feature = "trend_analysis"
	FeatureAdvancedReports Feature = "advanced_reports"
	FeatureBulkUpload      Feature = "bulk_upload"
	FeatureReportExport    Feature = "report_export"
	FeatureExpiryAlerts    Feature = "expiry_alerts"

	FeatureCompetitiveBenchmarking Feature = "competitive_benchmarking"
	FeatureMultiSiteManagement     Feature = "multi_site_management"
	FeatureAPIAccess               Feature = "api_access"
	FeatureCustomBranding          Feature = "custom_branding"
	FeatureAuditLog                Feature = "audit_log"
)

var allFeatures = []Feature{
	FeatureDocumentUpload, FeatureCertificateExtraction, FeaturePatientRecords,
	FeatureFitnessTracking, FeatureSimpleCharts, FeatureBasicReports,
	FeatureTrendAnalysis, FeatureAdvancedReports, FeatureBulkUpload,
	FeatureReportExport, FeatureExpiryAlerts,
	FeatureCompetitiveBenchmarking, FeatureMultiSiteManagement, FeatureAPIAccess,
	FeatureCustomBranding, FeatureAuditLog,
}

var knownFeatures = func() map[Feature]bool {
	m := make(map[Feature]bool, len(allFeatures))
	for _, f := range allFeatures {
		m[f] = true
	}
	return m
}()

// AllFeatures lists the vocabulary in catalog order.
func AllFeatures() []Feature {
	return append([]Feature(nil), allFeatures...)
}

// ParseFeature accepts a known feature key, case-insensitively.
func ParseFeature(s string) (Feature, error) {
	f := Feature(strings.ToLower(strings.TrimSpace(s)))
	if !knownFeatures[f] {
		return "", fmt.Errorf("%w: %q", ErrInvalidFeature, s)
	}
	return f, nil
}

// featureKey is the shape of a feature identifier, known or not.
var featureKey = regexp.MustCompile(`^[a-z][a-z0-9_]{0,63}$`)

// ParseFeatureKey accepts any well-formed feature key, case-insensitively.
// Keys outside the vocabulary are returned as is so gate checks can deny them.
func ParseFeatureKey(s string) (Feature, error) {
	f := Feature(strings.ToLower(strings.TrimSpace(s)))
	if !featureKey.MatchString(string(f)) {
		return "", fmt.Errorf("%w: %q", ErrInvalidFeature, s)
	}
	return f, nil
}

func (f Feature) String() string { return string(f) }

// IsKnown reports whether f belongs to the vocabulary.
func (f Feature) IsKnown() bool { return knownFeatures[f] }
