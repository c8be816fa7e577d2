package prompts

import "math/rand/v2"

var segmentInstructions = []string{
	`You are a legal document analysis assistant. Divide the document provided in the input into logical segments that follow its structure: articles, sections, or standalone paragraphs. Keep each segment's text verbatim and choose the granularity that best supports clause-level analysis.`,

	`As a legal document segmentation expert, split the input document into coherent units. Prefer the headings and numbering the document already uses. Where no structure exists, fall back to paragraphs. Never summarize or rewrite the segment text.`,

	`Segment the legal document in the input into ordered, non-overlapping units suitable for independent analysis. Each unit should address one provision or closely related group of provisions.`,
}

var analyzeInstructions = []string{
	`You are a legal document analysis assistant. Analyze the segment provided in the input. Summarize what it establishes, assign exactly one category from the taxonomy, and identify its strengths and weaknesses from a regulatory perspective.`,

	`As a legal segment analyst, review the segment in the input. Explain its effect concisely, tag it with the best-fitting taxonomy category, and weigh its strengths against its weaknesses. Your confidence should reflect how clear and self-contained the segment is.`,

	`Act as a legal segment reviewer. Assess the segment in the input for clarity, enforceability and scope. Classify it using the provided taxonomy and report both the provisions that work well and those that fall short.`,
}

var reflectSegmentInstructions = []string{
	`You are reviewing an analysis of a legal document segment produced by another analyst. Decide whether the analysis is accurate, complete and consistent with the segment text. Accept sound analyses, request a retry when the analysis is flawed but recoverable, and mark it for human review when it cannot be trusted.`,

	`As a segment reflection expert, check the analysis in the input against its source segment. Verify that the summary is faithful, the category fits the taxonomy, and the strengths and weaknesses are grounded in the text.`,

	`Reflect on the segment analysis in the input and recommend an action. Focus on factual consistency with the segment text and on whether a second attempt would likely improve the result.`,
}

var compareInstructions = []string{
	`You are a legal document analysis assistant. Compare the accepted segment analyses of two documents. Consider their summaries, categories, strengths, weaknesses and rationales. Identify where the documents agree, where they diverge, which topics each emphasizes, and which elements are missing from one or both.`,

	`As a comparative legal analyst, contrast the two sets of segment analyses in the input. Organize similarities and differences by taxonomy topic and describe the regulatory gaps each document leaves open.`,

	`Compare the two documents represented by the segment analyses in the input. Produce a balanced synthesis of their common ground and their distinctions, note each document's focus areas, and call out omissions.`,
}

var reflectComparisonInstructions = []string{
	`You are reviewing a comparative analysis of two legal documents. Decide whether the comparison is accurate, complete and well supported by the underlying analyses. Accept sound comparisons, request a retry when the comparison is flawed but recoverable, request a reboot when the underlying segment analyses must be redone, and mark it for human review otherwise.`,

	`As a comparison reflection expert, evaluate the comparison in the input. Check that similarities and differences are supported, that focus areas are plausible, and that gaps are genuine omissions. When confidence is very low, consider a reboot.`,

	`Reflect on the document comparison in the input and recommend an action. Weigh the internal consistency of the comparison and whether another attempt, or a fresh analysis of the segments, would likely improve it.`,
}

var instructions = map[Stage][]string{
	StageSegment:           segmentInstructions,
	StageAnalyze:           analyzeInstructions,
	StageReflectSegment:    reflectSegmentInstructions,
	StageCompare:           compareInstructions,
	StageReflectComparison: reflectComparisonInstructions,
}

// Instructions returns one of the default instruction variants for a stage,
// chosen at random on every call.
// Returns ErrInvalidStage if the stage is not recognized.
func Instructions(stage Stage) (string, error) {
	variants, ok := instructions[stage]
	if !ok {
		return "", ErrInvalidStage
	}
	return variants[rand.IntN(len(variants))], nil
}

// Variants returns every default instruction variant for a stage.
func Variants(stage Stage) ([]string, error) {
	variants, ok := instructions[stage]
	if !ok {
		return nil, ErrInvalidStage
	}
	return variants, nil
}
