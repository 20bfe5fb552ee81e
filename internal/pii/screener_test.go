package pii

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegexScreener_Screen(t *testing.T) {
	text := "Send your resume to hiring@acme.io or call (415) 555-0134. " +
		"Apply at https://acme.io/jobs/42. Do not send SSNs like 123-45-6789."

	entities, err := NewRegexScreener().Screen(context.Background(), text)
	require.NoError(t, err)

	var kinds, spans []string
	for _, e := range entities {
		kinds = append(kinds, e.Type)
		spans = append(spans, e.Text)
		assert.Equal(t, e.Text, text[e.Offset:e.Offset+len(e.Text)])
	}
	assert.Equal(t, []string{TypeEmail, TypePhone, TypeURL, TypeSSN}, kinds)
	assert.Equal(t, []string{"hiring@acme.io", "(415) 555-0134", "https://acme.io/jobs/42", "123-45-6789"}, spans)
}

func TestRegexScreener_NoFindings(t *testing.T) {
	entities, err := NewRegexScreener().Screen(context.Background(), "Senior Go engineer, 5+ years, Kubernetes.")
	require.NoError(t, err)
	assert.Empty(t, entities)
}

func TestRegexScreener_EmailDomainNotReportedAsURL(t *testing.T) {
	entities, err := NewRegexScreener().Screen(context.Background(), "jobs@example.com")
	require.NoError(t, err)
	require.Len(t, entities, 1)
	assert.Equal(t, TypeEmail, entities[0].Type)
}

func TestRegexScreener_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewRegexScreener().Screen(ctx, "a@b.co")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSummary(t *testing.T) {
	entities, err := NewRegexScreener().Screen(context.Background(), "a@b.co, c@d.co, 555-123-4567")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{TypeEmail: 2, TypePhone: 1}, Summary(entities))
}
