package webhook

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseEnvelope(t *testing.T) {
	raw := []byte(`{
		"id": "evt-1",
		"topic": "transfer_completed",
		"timestamp": "2026-03-01T10:00:00Z",
		"_links": {"resource": {"href": "https://api.dwolla.com/transfers/T1"}}
	}`)

	env, err := ParseEnvelope(raw)
	assert.NoError(t, err)
	assert.Equal(t, "evt-1", env.ID)
	assert.Equal(t, "transfer_completed", env.Topic)

	kind, id := env.ResourceLinkage()
	assert.Equal(t, "transfer", kind)
	assert.Equal(t, "T1", id)
}

func TestParseEnvelope_Malformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", `{{`},
		{"missing id", `{"topic":"transfer_created"}`},
		{"missing topic", `{"id":"evt-1"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseEnvelope([]byte(tt.raw))
			assert.Error(t, err)
		})
	}
}

func TestResourceLinkage_Singularizes(t *testing.T) {
	tests := []struct {
		href     string
		wantKind string
		wantID   string
	}{
		{"https://api.dwolla.com/transfers/T1", "transfer", "T1"},
		{"https://api.dwolla.com/customers/C1", "customer", "C1"},
		{"https://api.dwolla.com/funding-sources/F1", "funding-source", "F1"},
		{"https://api.dwolla.com/transfers/T1/", "transfer", "T1"},
		{"", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.href, func(t *testing.T) {
			env := &Envelope{}
			env.Links.Resource.Href = tt.href
			kind, id := env.ResourceLinkage()
			assert.Equal(t, tt.wantKind, kind)
			assert.Equal(t, tt.wantID, id)
		})
	}
}
