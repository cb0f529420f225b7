package tempr

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRetain_AsyncCompletesAndIsQueryable exercises spec §6's async retain
// contract end to end: Retain(async=true) returns immediately with an
// operation id, and OperationStatus eventually reports the same unit ids
// a synchronous call would have produced.
func TestRetain_AsyncCompletesAndIsQueryable(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, Hooks{
		FactExtractor: stubExtractor(ExtractedFact{Text: "Alice works at Google", FactType: WorldFact}),
	})

	retained, err := e.Retain(ctx, RetainRequest{BankID: "b1", Content: "Alice works at Google", Async: true})
	require.NoError(t, err)
	require.NotEmpty(t, retained.OperationID)
	require.Empty(t, retained.UnitIDs)

	require.Eventually(t, func() bool {
		status, err := e.OperationStatus(ctx, retained.OperationID)
		return err == nil && status.State == OperationCompleted
	}, 2*time.Second, 10*time.Millisecond)

	status, err := e.OperationStatus(ctx, retained.OperationID)
	require.NoError(t, err)
	require.Len(t, status.UnitIDs, 1)
	assert.Empty(t, status.Err)
}

// TestRetain_AsyncFailurePropagatesToStatus verifies a failing background
// pipeline surfaces OperationFailed rather than silently dropping the error.
func TestRetain_AsyncFailurePropagatesToStatus(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, Hooks{
		FactExtractor: func(ctx context.Context, bankID, content, context string) (ExtractResult, error) {
			return ExtractResult{}, errors.New("extractor boom")
		},
	})

	retained, err := e.Retain(ctx, RetainRequest{BankID: "b1", Content: "anything", Async: true})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		status, err := e.OperationStatus(ctx, retained.OperationID)
		return err == nil && status.State == OperationFailed
	}, 2*time.Second, 10*time.Millisecond)
}

func TestOperationStatus_UnknownIDIsNotFound(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, Hooks{FactExtractor: stubExtractor()})

	_, err := e.OperationStatus(ctx, "does-not-exist")
	assert.True(t, IsNotFound(err))
}
