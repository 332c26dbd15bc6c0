package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEveryStatusHasLabelAndStyle(t *testing.T) {
	for _, status := range AllPublicationStatuses {
		assert.NotEqual(t, "Unknown", status.Label(), "status %s is missing a label", status)
		assert.NotEmpty(t, status.StyleClass(), "status %s is missing a style class", status)
	}
}

func TestUnknownStatusFallsBack(t *testing.T) {
	bogus := PublicationStatus("BOGUS")
	assert.Equal(t, "Unknown", bogus.Label())
	assert.Equal(t, "badge-muted", bogus.StyleClass())
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from    PublicationStatus
		to      PublicationStatus
		allowed bool
	}{
		{StatusPending, StatusUnderReview, true},
		{StatusPending, StatusDeleted, true},
		{StatusPending, StatusReviewed, false},
		{StatusPending, StatusPublished, false},
		{StatusUnderReview, StatusReviewed, true},
		{StatusUnderReview, StatusDeleted, true},
		{StatusUnderReview, StatusPublished, false},
		{StatusUnderReview, StatusPending, false},
		{StatusReviewed, StatusPublished, true},
		{StatusReviewed, StatusRejected, true},
		{StatusReviewed, StatusDeleted, true},
		{StatusReviewed, StatusUnderReview, false},
		{StatusPublished, StatusRejected, false},
		{StatusRejected, StatusPending, false},
		{StatusDeleted, StatusPending, false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.allowed, tc.from.CanTransition(tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestTerminalStatuses(t *testing.T) {
	assert.True(t, StatusPublished.Terminal())
	assert.True(t, StatusRejected.Terminal())
	assert.True(t, StatusDeleted.Terminal())
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusUnderReview.Terminal())
	assert.False(t, StatusReviewed.Terminal())
}

func TestStatusCatalogCoversEveryStatus(t *testing.T) {
	catalog := StatusCatalog()
	assert.Len(t, catalog, len(AllPublicationStatuses))
	for i, info := range catalog {
		assert.Equal(t, AllPublicationStatuses[i], info.Value)
		assert.NotEmpty(t, info.Label)
		assert.NotEmpty(t, info.StyleClass)
	}
}
