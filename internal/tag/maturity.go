package tag

import "github.com/vporoshin/curator/internal/model"

// Keyword vocabularies for the clinical-maturity classifier.
var (
	regulatoryKeywords = []string{"fda", "nih", "approval", "clearance", "regulatory", "ce mark", "ema"}
	approvalKeywords   = []string{"approved", "cleared", "authorized"}
	validationKeywords = []string{"clinical trial", "randomized", "validated", "peer-reviewed", "phase"}
)

// ClassifyMaturity derives the clinical maturity of a medicine-tagged
// cluster from its lower-cased text. Checks run in descending maturity
// order: regulatory keywords plus an approval marker mean a deployed
// product, regulatory keywords alone mean regulatory relevance, validation
// keywords mean clinical validation, anything else is exploratory.
func ClassifyMaturity(text string) model.ClinicalMaturityLevel {
	if containsAny(text, regulatoryKeywords) {
		if containsAny(text, approvalKeywords) {
			return model.MaturityApprovedDeployed
		}
		return model.MaturityRegulatoryRelevant
	}
	if containsAny(text, validationKeywords) {
		return model.MaturityClinicallyValidated
	}
	return model.MaturityExploratory
}
