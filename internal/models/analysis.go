package models

import "time"

// Aspect is one fixed analysis dimension of a review.
type Aspect string

const (
	AspectSyntax         Aspect = "syntax"
	AspectSecurity       Aspect = "security"
	AspectPerformance    Aspect = "performance"
	AspectStyle          Aspect = "style"
	AspectBestPractices  Aspect = "best_practices"
	AspectCommentQuality Aspect = "comment_quality"
)

// Aspects lists every aspect in the order reviews run and report them.
var Aspects = []Aspect{
	AspectSyntax,
	AspectSecurity,
	AspectPerformance,
	AspectStyle,
	AspectBestPractices,
	AspectCommentQuality,
}

// AnalysisRequest is the input of a code review. It is not modified once received.
type AnalysisRequest struct {
	Code     string `json:"code"`
	Language string `json:"language"`
	FileType string `json:"file_type,omitempty"`
	Context  string `json:"context,omitempty"`
}

// AspectResult holds the findings of one aspect. Err is set when the aspect
// degraded to an empty list.
type AspectResult struct {
	Aspect   Aspect    `json:"aspect"`
	Findings []Finding `json:"findings"`
	Err      string    `json:"error,omitempty"`
}

// Summary is derived from the per-aspect results of a review.
type Summary struct {
	TotalIssues             int      `json:"total_issues"`
	SyntaxIssues            int      `json:"syntax_issues"`
	SecurityVulnerabilities int      `json:"security_vulnerabilities"`
	PerformanceIssues       int      `json:"performance_issues"`
	StyleViolations         int      `json:"style_violations"`
	BestPracticeViolations  int      `json:"best_practice_violations"`
	CommentQualityIssues    int      `json:"comment_quality_issues"`
	CodeLength              int      `json:"code_length"`
	Language                string   `json:"language"`
	OverallSeverity         Severity `json:"overall_severity"`
}

// Explanation is a plain-language note about one finding or theme.
type Explanation struct {
	Topic       string `json:"topic"`
	Explanation string `json:"explanation"`
}

// Suggestion is a concrete improvement the author could make.
type Suggestion struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Example     string `json:"example,omitempty"`
}

// AggregatedReview is the response to a review request.
type AggregatedReview struct {
	ReviewID                string        `json:"review_id"`
	Model                   string        `json:"model"`
	SeverityLevel           Severity      `json:"severity_level"`
	RequiresHumanReview     bool          `json:"requires_human_review"`
	AnalysisComplete        bool          `json:"analysis_complete"`
	ProcessingTimeSeconds   float64       `json:"processing_time_seconds"`
	SyntaxIssues            []Finding     `json:"syntax_issues"`
	SecurityVulnerabilities []Finding     `json:"security_vulnerabilities"`
	PerformanceIssues       []Finding     `json:"performance_issues"`
	StyleViolations         []Finding     `json:"style_violations"`
	BestPracticeViolations  []Finding     `json:"best_practice_violations"`
	CommentQualityIssues    []Finding     `json:"comment_quality_issues"`
	Explanations            []Explanation `json:"explanations"`
	ImprovementSuggestions  []Suggestion  `json:"improvement_suggestions"`
	LearningResources       []string      `json:"learning_resources"`
	Summary                 Summary       `json:"summary"`
	Warnings                []string      `json:"warnings,omitempty"`
	CreatedAt               time.Time     `json:"created_at"`
}

// FindingsFor returns the finding list stored for an aspect.
func (r *AggregatedReview) FindingsFor(a Aspect) []Finding {
	switch a {
	case AspectSyntax:
		return r.SyntaxIssues
	case AspectSecurity:
		return r.SecurityVulnerabilities
	case AspectPerformance:
		return r.PerformanceIssues
	case AspectStyle:
		return r.StyleViolations
	case AspectBestPractices:
		return r.BestPracticeViolations
	case AspectCommentQuality:
		return r.CommentQualityIssues
	}
	return nil
}

// SetFindings stores the finding list for an aspect. A nil list is stored as empty
// so it serializes as [] rather than null.
func (r *AggregatedReview) SetFindings(a Aspect, findings []Finding) {
	if findings == nil {
		findings = []Finding{}
	}
	switch a {
	case AspectSyntax:
		r.SyntaxIssues = findings
	case AspectSecurity:
		r.SecurityVulnerabilities = findings
	case AspectPerformance:
		r.PerformanceIssues = findings
	case AspectStyle:
		r.StyleViolations = findings
	case AspectBestPractices:
		r.BestPracticeViolations = findings
	case AspectCommentQuality:
		r.CommentQualityIssues = findings
	}
}

// AllFindings returns every finding across aspects in aspect order.
func (r *AggregatedReview) AllFindings() []Finding {
	var out []Finding
	for _, a := range Aspects {
		out = append(out, r.FindingsFor(a)...)
	}
	return out
}
