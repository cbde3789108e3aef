package journey

import "strings"

// RecommendAction maps a journey to a remediation suggestion for
// operator-facing reports. Pure; no state effect.
func RecommendAction(inst *Instance) string {
	if inst == nil {
		return ""
	}

	name := strings.ToLower(inst.DefinitionName)
	switch {
	case strings.Contains(name, "micro-deposit"):
		return "Ask the customer to confirm the two micro-deposit amounts in their bank statement."
	case strings.Contains(name, "verification"):
		return "Review the customer's verification status and request outstanding documents."
	case strings.Contains(name, "transfer"):
		if inst.Status == StatusFailed {
			return "Check the transfer's return code and contact the customer about the failed payment."
		}
		return "Check the transfer status with the payment provider and confirm the funding source."
	default:
		return "Review the journey timeline and follow up with the customer."
	}
}
