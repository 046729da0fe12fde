package llm

import (
	"fmt"
	"strings"
)

// BuildAnalysisPrompt renders the commercialization-analysis prompt for a
// paper. The excerpt is clipped so prompts stay within a predictable size
// regardless of paper length.
func BuildAnalysisPrompt(input AnalyzeInput) string {
	authors := "unknown"
	if len(input.Authors) > 0 {
		authors = strings.Join(input.Authors, ", ")
	}

	excerpt := TruncateExcerpt(input.Excerpt)
	if strings.TrimSpace(excerpt) == "" {
		excerpt = "no excerpt available"
	}

	analysisType := input.AnalysisType
	if analysisType == "" {
		analysisType = "standard"
	}

	var b strings.Builder
	b.WriteString("You are an expert in assessing the commercialization potential of academic research. ")
	b.WriteString("Analyze the following paper and provide a detailed commercialization opportunity analysis.\n\n")
	fmt.Fprintf(&b, "Paper title: %s\n", input.Title)
	fmt.Fprintf(&b, "Authors: %s\n\n", authors)
	b.WriteString("Paper excerpt:\n")
	b.WriteString(excerpt)
	b.WriteString("\n\nProvide the following analysis:\n")
	b.WriteString("1. Technical feasibility assessment\n")
	b.WriteString("2. Potential market opportunities\n")
	b.WriteString("3. Recommended business models\n")
	b.WriteString("4. Implementation roadmap\n")
	b.WriteString("5. Resource requirements\n\n")
	fmt.Fprintf(&b, "Analysis type: %s\n", analysisType)
	if len(input.Parameters) > 0 {
		fmt.Fprintf(&b, "Specific requirements: %v\n", input.Parameters)
	}
	return b.String()
}
