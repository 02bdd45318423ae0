package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTarget(t *testing.T) {
	target, err := ParseTarget("vendor", "v1")
	require.NoError(t, err)
	assert.Equal(t, VendorTarget{VendorID: "v1"}, target)

	target, err = ParseTarget("CategoryProduct", "c1+p1")
	require.NoError(t, err)
	assert.Equal(t, CategoryProductTarget{CategoryID: "c1", ProductID: "p1"}, target)
	assert.Equal(t, TargetCategoryProduct, target.Kind())

	target, err = ParseTarget("categoryvendor", "c1+v1")
	require.NoError(t, err)
	assert.Equal(t, CategoryVendorTarget{CategoryID: "c1", VendorID: "v1"}, target)

	_, err = ParseTarget("categoryvendor", "c1")
	assert.True(t, errors.Is(err, ErrInvalidSubscription))

	_, err = ParseTarget("team", "x")
	assert.True(t, errors.Is(err, ErrInvalidSubscription))

	_, err = ParseTarget("vendor", " ")
	assert.True(t, errors.Is(err, ErrInvalidSubscription))
}

func TestStage_Next(t *testing.T) {
	assert.Equal(t, StageDetect, StageRefresh.Next())
	assert.Equal(t, StageDispatch, StageDetect.Next())
	assert.Equal(t, StageDeliver, StageDispatch.Next())
	assert.Equal(t, StageDone, StageDeliver.Next())
}

func TestTargetID_RoundTrip(t *testing.T) {
	targets := []SubscriptionTarget{
		VendorTarget{VendorID: "v1"},
		ProductTarget{ProductID: "p1"},
		CategoryTarget{CategoryID: "c1"},
		CategoryProductTarget{CategoryID: "c1", ProductID: "p1"},
		CategoryVendorTarget{CategoryID: "c1", VendorID: "v1"},
	}
	for _, target := range targets {
		parsed, err := ParseTarget(string(target.Kind()), target.ID())
		require.NoError(t, err)
		assert.Equal(t, target, parsed)
	}
}
