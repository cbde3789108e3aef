package journey

// Seed definitions for the business processes the dashboard tracks.
// Compiled-in rather than stored: these change with code, not with data.
var definitions = []Definition{
	{
		Name:         "Transfer Settlement",
		ResourceType: "transfer",
		Steps: []string{
			"transfer_created",
			"transfer_processed",
			"transfer_completed",
		},
		Terminal: map[string]Status{
			"transfer_completed": StatusCompleted,
			"transfer_cancelled": StatusAbandoned,
			"transfer_failed":    StatusFailed,
			"transfer_returned":  StatusFailed,
			"transfer_reclaimed": StatusFailed,
		},
		Active: true,
	},
	{
		Name:         "Customer Verification",
		ResourceType: "customer",
		Steps: []string{
			"customer_created",
			"customer_funding_source_added",
			"customer_funding_source_verified",
			"customer_verified",
		},
		Terminal: map[string]Status{
			"customer_verified":  StatusCompleted,
			"customer_suspended": StatusFailed,
		},
		Active: true,
	},
	{
		Name:         "Micro-deposit Verification",
		ResourceType: "funding-source",
		Steps: []string{
			"customer_microdeposits_added",
			"customer_microdeposits_completed",
		},
		Terminal: map[string]Status{
			"customer_microdeposits_completed": StatusCompleted,
			"customer_microdeposits_failed":    StatusFailed,
		},
		Active: true,
	},
}

// Definitions returns all active journey definitions.
func Definitions() []Definition {
	out := make([]Definition, 0, len(definitions))
	for _, d := range definitions {
		if d.Active {
			out = append(out, d)
		}
	}
	return out
}

// DefinitionByName looks a definition up by name.
func DefinitionByName(name string) (Definition, bool) {
	for _, d := range definitions {
		if d.Name == name {
			return d, true
		}
	}
	return Definition{}, false
}

// DefinitionsForTopic returns the active definitions an event topic is
// relevant to. Journeys are opt-in per topic: an empty result means the
// engine ignores the event.
func DefinitionsForTopic(topic string) []Definition {
	var out []Definition
	for _, d := range definitions {
		if d.Active && d.Matches(topic) {
			out = append(out, d)
		}
	}
	return out
}
