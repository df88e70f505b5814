package agent

import (
	"fmt"
	"strings"

	"nexus-crypto-desk/internal/domain"
)

// ContextBudget bounds the running cross-stage context passed into each
// invocation, keeping prompt growth flat across a run.
const ContextBudget = 1000

const analystGround = `You are one analyst on a crypto research desk producing educational analysis, not financial advice.

Rules:
- Use ONLY the data present in the snapshot JSON. Never invent numbers.
- Every numeric claim must appear in numbers_used with the snapshot field it came from.
- If data you need is missing, list it in data_needed instead of guessing.
- Respond with ONLY a JSON object, no markdown, matching exactly the schema you are given.`

const agentSchema = `{
  "agent": "<your role id>",
  "asset": "<symbol>",
  "thesis": ["ordered thesis statements"],
  "alerts": ["conditions worth flagging"],
  "assertions": [{"claim": "...", "evidence": ["snapshot.field", ...]}],
  "numbers_used": [{"field": "snapshot.field", "value": 0}],
  "data_needed": ["missing data, if any"],
  "confidence": "low|medium|high",
  "disclaimer": "one-line educational disclaimer"
}`

const triageExtras = `Because you are the triage role, also include:
  "setup_score": <0-10 number scoring setup quality>,
  "posture": "WAIT|SEEK_ENTRY|REDUCE_RISK",
  "allow_deep": <true if deep analysis is warranted>,
  "reason": "<one line explaining the allow_deep decision>"`

const strategistSchema = `{
  "asset": "<symbol>",
  "scenario": "<narrative of the most likely scenario>",
  "posture": "WAIT|SEEK_ENTRY|REDUCE_RISK",
  "entry": {"entry_price": <number or null>, "conditions": ["..."], "invalidation": ["..."]},
  "execution_notes": ["..."],
  "conflicts_resolved": ["how disagreements between analysts were settled"],
  "top_risks": ["exactly the top 3 risks"],
  "numbers_used": [{"field": "snapshot.field", "value": 0}],
  "data_needed": ["..."],
  "confidence": "low|medium|high",
  "disclaimer": "one-line educational disclaimer"
}`

const auditorSchema = `{
  "status": "validated|partial|failed",
  "critical_issues": [{"kind": "unsupported-claim|contradiction|out-of-snapshot|math-error", "message": "...", "location": "<which output>"}],
  "data_needed": ["..."],
  "confidence": "low|medium|high"
}`

// BuildAgentPrompts returns the system and user prompts for one analytical
// stage. runningContext is the truncated summary of prior stage theses.
func BuildAgentPrompts(role Role, symbol string, snapshotJSON []byte, runningContext string) (string, string) {
	var system strings.Builder
	system.WriteString(analystGround)
	system.WriteString("\n\nRole: ")
	system.WriteString(string(role))
	system.WriteString(". ")
	system.WriteString(personas[role])
	system.WriteString("\n\nOutput schema:\n")
	system.WriteString(agentSchema)
	if role == RoleTriage {
		system.WriteString("\n\n")
		system.WriteString(triageExtras)
	}

	var user strings.Builder
	fmt.Fprintf(&user, "Asset: %s\n\nSnapshot:\n%s\n", symbol, snapshotJSON)
	if runningContext != "" {
		user.WriteString("\nFindings from earlier stages of this run:\n")
		user.WriteString(runningContext)
	}

	return system.String(), user.String()
}

// BuildSynthesisPrompts returns the system and user prompts for the
// strategist stage. Unlike analytical stages it receives the full list of
// analytical outputs rather than the running summary. directive carries
// correction-loop feedback and is empty on the first pass.
func BuildSynthesisPrompts(symbol string, snapshotJSON []byte, outputsJSON []byte, directive string) (string, string) {
	var system strings.Builder
	system.WriteString(analystGround)
	system.WriteString("\n\nRole: strategist. You merge the desk's analytical outputs into one actionable, educational master plan.")
	system.WriteString("\nSet entry.entry_price to null unless the analyses support a concrete entry level from the snapshot.")
	system.WriteString("\nDo not compute take-profit or stop prices; the desk derives them from configured percentages.")
	system.WriteString("\n\nOutput schema:\n")
	system.WriteString(strategistSchema)
	if directive != "" {
		system.WriteString("\n\nCorrection directive:\n")
		system.WriteString(directive)
	}

	var user strings.Builder
	fmt.Fprintf(&user, "Asset: %s\n\nSnapshot:\n%s\n\nAnalytical outputs:\n%s\n", symbol, snapshotJSON, outputsJSON)

	return system.String(), user.String()
}

// BuildValidationPrompts returns the system and user prompts for the
// auditor stage. planJSON is nil for scan runs, which validate analytical
// outputs alone.
func BuildValidationPrompts(symbol string, snapshotJSON, outputsJSON, planJSON []byte) (string, string) {
	var system strings.Builder
	system.WriteString("You audit crypto analysis for integrity. Check every output against the snapshot: ")
	system.WriteString("flag claims without snapshot evidence, contradictions between outputs, numbers not present in the snapshot, and arithmetic errors.")
	system.WriteString("\nStatus is \"failed\" only when critical issues make the plan unusable; \"partial\" when findings are usable with caveats.")
	system.WriteString("\nRespond with ONLY a JSON object, no markdown.\n\nOutput schema:\n")
	system.WriteString(auditorSchema)

	var user strings.Builder
	fmt.Fprintf(&user, "Asset: %s\n\nSnapshot:\n%s\n\nAnalytical outputs:\n%s\n", symbol, snapshotJSON, outputsJSON)
	if planJSON != nil {
		fmt.Fprintf(&user, "\nMaster plan:\n%s\n", planJSON)
	}

	return system.String(), user.String()
}

// CorrectionDirective embeds a failed validation's critical issues verbatim
// into the re-synthesis instructions.
func CorrectionDirective(issues []domain.CriticalIssue) string {
	var sb strings.Builder
	sb.WriteString("Your previous plan failed validation. Fix these issues and produce a full replacement plan:\n")
	for i, issue := range issues {
		fmt.Fprintf(&sb, "%d. [%s] %s (at %s)\n", i+1, issue.Kind, issue.Message, issue.Location)
	}
	return sb.String()
}

// AppendContext appends one stage's thesis summary to the running context,
// trimming from the front to stay within ContextBudget characters.
func AppendContext(running string, role Role, thesis []string) string {
	var sb strings.Builder
	sb.WriteString(running)
	if sb.Len() > 0 {
		sb.WriteString("\n")
	}
	fmt.Fprintf(&sb, "[%s] %s", role, strings.Join(thesis, " "))

	out := sb.String()
	if len(out) > ContextBudget {
		out = out[len(out)-ContextBudget:]
	}
	return out
}
