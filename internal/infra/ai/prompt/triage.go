package prompt

import "fmt"

// GetSystemPrompt instructs the model how to triage an export run summary.
func GetSystemPrompt() string {
	return `You are a security operations assistant. You receive the JSON summary of a bulk
report-export run against a policy governance server: total/success/skipped/failed
counts plus a list of failed applications with an error kind
(auth, network, rate_limited, server, client, serialization, file_write) and a reason.

Respond with a single JSON object, no markdown, using this shape:
{
  "verdict": "clean" | "degraded" | "broken",
  "failure_groups": [
    {"kind": "<error kind>", "count": <n>, "applications": ["<publicId>", ...], "likely_cause": "<one sentence>"}
  ],
  "retry_recommended": ["<publicId>", ...],
  "notes": "<at most three sentences of operator guidance>"
}

Group failures by error kind. Only list applications under retry_recommended when
the error kind can self-resolve (network, server, rate_limited). Keep it factual;
never invent applications that are not in the input.`
}

// GetUserPrompt wraps the run summary for the model.
func GetUserPrompt(runSummaryJSON string) string {
	return fmt.Sprintf("Triage this export run summary:\n%s", runSummaryJSON)
}
