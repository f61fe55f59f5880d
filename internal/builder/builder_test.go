package builder

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestComputeParticipantKeySelfOnly(t *testing.T) {
	key := ComputeParticipantKey(
		"alice@example.com",
		[]string{"alice@example.com"},
		nil,
		[]string{"alice@example.com"},
	)
	require.Equal(t, "__self__", key)
}

func TestComputeParticipantKeyCaseAndOrderNormalization(t *testing.T) {
	self := []string{"me@x.com"}
	k1 := ComputeParticipantKey("me@x.com", []string{"B@x.com", "A@x.com"}, nil, self)
	k2 := ComputeParticipantKey("me@x.com", []string{"a@x.com", "b@x.com"}, nil, self)
	require.Equal(t, k1, k2)
	require.Equal(t, "a@x.com\nb@x.com", k1)
}

func TestComputeParticipantKeyExcludesSelfFromSender(t *testing.T) {
	key := ComputeParticipantKey(
		"brian@gmail.com",
		[]string{"brian@gmail.com"},
		nil,
		[]string{"brian@gmail.com"},
	)
	require.Equal(t, "__self__", key)
}

func TestComputeParticipantKeyMultipleParticipants(t *testing.T) {
	key := ComputeParticipantKey(
		"charlie@example.com",
		[]string{"brian@gmail.com", "alice@example.com"},
		nil,
		[]string{"brian@gmail.com"},
	)
	require.Equal(t, "alice@example.com\ncharlie@example.com", key)
}

func TestComputeConversationIDDeterministic(t *testing.T) {
	id1 := ComputeConversationID("alice@example.com")
	id2 := ComputeConversationID("alice@example.com")
	require.Equal(t, id1, id2)
	require.Len(t, id1, 16)
}

func TestComputeConversationIDDiffersByKey(t *testing.T) {
	id1 := ComputeConversationID("alice@example.com")
	id2 := ComputeConversationID("bob@example.com")
	require.NotEqual(t, id1, id2)
}

func TestParseDateHeaderFallsBackToInternaldate(t *testing.T) {
	ms := ParseDateHeader("01-Jan-2026 10:00:00 +0000")
	require.NotZero(t, ms)
}

func TestParseDateHeaderInvalidReturnsZero(t *testing.T) {
	require.Zero(t, ParseDateHeader("not a date"))
}
