package classifier

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassifyChatNoSignals(t *testing.T) {
	result := Classify(Input{FromAddress: "friend@example.com", Subject: "Hey, how are you?"})
	require.Equal(t, Chat, result.Classification)
}

func TestClassifyAutomatedKnownSender(t *testing.T) {
	result := Classify(Input{
		FromAddress: "noreply@github.com",
		Subject:     "[repo] New issue: Bug report",
	})
	require.Equal(t, Automated, result.Classification)
}

func TestClassifyNewsletterDomainAndBody(t *testing.T) {
	result := Classify(Input{
		FromAddress: "newsletter@substack.com",
		Subject:     "Weekly Newsletter: Top Stories",
		BodyText:    "Click here to unsubscribe from this newsletter.",
	})
	require.Equal(t, Newsletter, result.Classification)
}

func TestClassifyTransactionalSubject(t *testing.T) {
	result := Classify(Input{
		FromAddress: "orders@store.com",
		Subject:     "Your order confirmation #12345",
	})
	require.Equal(t, Transactional, result.Classification)
}

func TestClassifyTrustedConnectionBiasesChat(t *testing.T) {
	result := Classify(Input{
		FromAddress: "newsletter@substack.com",
		Subject:     "Weekly Newsletter",
		SenderTrust: TrustConnectionLevel,
	})
	require.Equal(t, Chat, result.Classification)
}

func TestClassifyThreadingDeepReferencesFavorsChat(t *testing.T) {
	result := Classify(Input{
		FromAddress: "person@example.com",
		InReplyTo:   "abc@example.com",
		References:  []string{"a@x", "b@x", "c@x"},
	})
	require.Equal(t, Chat, result.Classification)
	require.Greater(t, result.Confidence, 0.5)
}

func TestClassifyAutoSubmittedIsExclusive(t *testing.T) {
	result := Classify(Input{
		FromAddress: "friend@example.com",
		Headers:     &Headers{AutoSubmitted: "auto-generated"},
	})
	require.Equal(t, Automated, result.Classification)
}
