package admission

import (
	"fmt"
	"strings"
)

// SuspectClassifier decides whether a rejected request looks like
// abuse rather than an honest burst. The decision is advisory: it is
// audited and logged but never changes the reject outcome.
type SuspectClassifier interface {
	Classify(req Request, tier Tier, count int64) (suspect bool, reason string)
}

// SuspectClassifierFunc adapts a function to SuspectClassifier.
type SuspectClassifierFunc func(req Request, tier Tier, count int64) (bool, string)

func (f SuspectClassifierFunc) Classify(req Request, tier Tier, count int64) (bool, string) {
	return f(req, tier, count)
}

// heuristicClassifier flags global-tier rejections, very high absolute
// counts and automation user-agents. A placeholder heuristic, not an
// anomaly detector; swap in a real classifier via the interface.
type heuristicClassifier struct {
	countThreshold int64
	signatures     []string
}

// NewHeuristicClassifier creates the default classifier.
func NewHeuristicClassifier(countThreshold int64) SuspectClassifier {
	return &heuristicClassifier{
		countThreshold: countThreshold,
		signatures: []string{
			"curl", "wget", "python-requests", "go-http-client",
			"scrapy", "bot", "spider", "crawler",
		},
	}
}

func (h *heuristicClassifier) Classify(req Request, tier Tier, count int64) (bool, string) {
	if tier == TierGlobal {
		return true, "global tier rejection"
	}
	if count > h.countThreshold {
		return true, fmt.Sprintf("request count %d exceeds threshold %d", count, h.countThreshold)
	}

	agent := strings.ToLower(req.UserAgent)
	for _, sig := range h.signatures {
		if strings.Contains(agent, sig) {
			return true, "automation user-agent: " + sig
		}
	}
	return false, ""
}
