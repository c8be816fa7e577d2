package prompts

const segmentSpec = `Respond with a JSON array matching this exact structure:

[
  {
    "title": "<heading or empty>",
    "text": "<full segment text>",
    "kind": "<paragraph|article|section>",
    "rationale": "<explanation>"
  }
]

Field constraints:
- title: Short heading for the segment, taken from the document when
  available. Empty string otherwise.
- text: The complete, verbatim text of the segment.
- kind: One of paragraph, article, or section, chosen from the document
  layout and the analytical granularity of the segment.
- rationale: Brief explanation of why the segment boundary was placed
  here.

Behavioral constraints:
- Always respond with valid JSON, no markdown fencing
- Return at least one segment
- Segments appear in document order and do not overlap`

const analyzeSpec = `Respond with a JSON object matching this exact structure:

{
  "summary": "<summary>",
  "category": "<taxonomy label>",
  "strengths": ["<strength>"],
  "weaknesses": ["<weakness>"],
  "confidence": 0.0,
  "rationale": "<explanation>"
}

Field constraints:
- summary: Concise summary of what the segment establishes.
- category: Exactly one label from the taxonomy provided in the input.
- strengths: Between one and five positive aspects of the segment.
- weaknesses: Between one and five negative aspects of the segment.
- confidence: Number between 0 and 1 expressing confidence in the
  analysis.
- rationale: Short explanation of the reasoning behind the analysis.

Behavioral constraints:
- Always respond with valid JSON, no markdown fencing
- Analyze only the segment provided in the input
- Never leave strengths or weaknesses empty`

const reflectSegmentSpec = `Respond with a JSON object matching this exact structure:

{
  "verdict": "<accept|retry|mark_review>",
  "confidence": 0.0,
  "rationale": "<explanation>"
}

Field constraints:
- verdict: accept when the analysis is sound, retry when a second
  analysis would likely fix it, mark_review when a human must decide.
- confidence: Number between 0 and 1 expressing the consistency and
  completeness of the analysis. A confidence above the
  confidence_threshold in the input is treated as accept.
- rationale: Short explanation of the verdict.

Behavioral constraints:
- Always respond with valid JSON, no markdown fencing
- Judge the analysis against the segment text in the input`

const compareSpec = `Respond with a JSON object matching this exact structure:

{
  "similarities": [{"topic": "<taxonomy label>", "explanation": "<text>"}],
  "differences": [{"topic": "<taxonomy label>", "explanation": "<text>"}],
  "focus_areas": {"document_a": ["<taxonomy label>"], "document_b": ["<taxonomy label>"]},
  "gaps": ["<text>"],
  "narrative_summary": "<summary>",
  "confidence": 0.0,
  "rationale": "<explanation>",
  "detailed_report": "<markdown>"
}

Field constraints:
- similarities: Commonalities between the documents, one entry per
  topic from the taxonomy.
- differences: Distinctions between the documents, one entry per topic
  from the taxonomy.
- focus_areas: For each document, the taxonomy topics it emphasizes.
- gaps: Plain strings describing elements present in one document and
  missing from the other, or missing from both. Never objects.
- narrative_summary: Concise prose summary of the comparison.
- confidence: Number between 0 and 1 expressing confidence in the
  comparison.
- rationale: Short explanation of the reasoning behind the comparison.
- detailed_report: Markdown report covering per-segment observations, a
  synthesis of similarities, differences and gaps, and a summary table
  of key contrasts. May be empty.

Behavioral constraints:
- Always respond with valid JSON, no markdown fencing around the object
- Base every finding on the analyses provided in the input`

const reflectComparisonSpec = `Respond with a JSON object matching this exact structure:

{
  "verdict": "<accept|retry|mark_review|reboot>",
  "reboot": false,
  "confidence": 0.0,
  "rationale": "<explanation>"
}

Field constraints:
- verdict: accept when the comparison is sound, retry when comparing
  again would likely fix it, reboot when the segment analyses must be
  redone, mark_review when a human must decide.
- reboot: Set true to request that the segment analyses be redone. A
  retry verdict takes precedence over this flag.
- confidence: Number between 0 and 1 expressing the consistency and
  completeness of the comparison. A confidence above the
  confidence_threshold in the input is treated as accept. Consider
  reboot when confidence is below 0.2.
- rationale: Short explanation of the verdict.

Behavioral constraints:
- Always respond with valid JSON, no markdown fencing`

var specs = map[Stage]string{
	StageSegment:           segmentSpec,
	StageAnalyze:           analyzeSpec,
	StageReflectSegment:    reflectSegmentSpec,
	StageCompare:           compareSpec,
	StageReflectComparison: reflectComparisonSpec,
}

// Spec returns the hardcoded specification for a workflow stage.
// Specifications define the expected output format and behavioral constraints.
// Returns ErrInvalidStage if the stage is not recognized.
func Spec(stage Stage) (string, error) {
	text, ok := specs[stage]
	if !ok {
		return "", ErrInvalidStage
	}
	return text, nil
}
