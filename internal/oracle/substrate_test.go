package oracle_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"stdref/internal/oracle"
)

var errBackend = errors.New("backend down")

func newMockedReference(t *testing.T, opts ...oracle.Option) (*oracle.Reference, *MockSubstrate) {
	t.Helper()

	// Arrange: a substrate that already holds state
	ctrl := gomock.NewController(t)
	sub := NewMockSubstrate(ctrl)
	sub.EXPECT().LoadAdmin(gomock.Any()).Return(admin, true, nil)

	ref, err := oracle.New(context.Background(), admin, sub, opts...)
	require.NoError(t, err)
	return ref, sub
}

func TestNew_SeedsFreshSubstrate(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	sub := NewMockSubstrate(ctrl)

	// Assert: admin stored then added as relayer, in order
	gomock.InOrder(
		sub.EXPECT().LoadAdmin(gomock.Any()).Return(oracle.Identity(""), false, nil),
		sub.EXPECT().StoreAdmin(gomock.Any(), admin).Return(nil),
		sub.EXPECT().PutRelayer(gomock.Any(), admin).Return(nil),
	)

	_, err := oracle.New(context.Background(), admin, sub)
	require.NoError(t, err)
}

func TestNew_LoadAdminError(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	sub := NewMockSubstrate(ctrl)
	sub.EXPECT().LoadAdmin(gomock.Any()).Return(oracle.Identity(""), false, errBackend)

	_, err := oracle.New(context.Background(), admin, sub)
	require.ErrorIs(t, err, errBackend)
}

func TestRelay_SubstrateErrorStopsBatch(t *testing.T) {
	t.Parallel()

	ref, sub := newMockedReference(t)
	ctx := context.Background()

	// Arrange: first symbol written, second read fails, third never touched
	sub.EXPECT().HasRelayer(gomock.Any(), admin).Return(true, nil)
	sub.EXPECT().GetDatum(gomock.Any(), oracle.Symbol("BTC")).Return(oracle.ReferenceDatum{}, false, nil)
	sub.EXPECT().PutDatum(gomock.Any(), oracle.Symbol("BTC"), oracle.ReferenceDatum{Rate: 1, ResolveTime: 2, RequestID: 3}).Return(nil)
	sub.EXPECT().GetDatum(gomock.Any(), oracle.Symbol("ETH")).Return(oracle.ReferenceDatum{}, false, errBackend)

	// Act
	err := ref.Relay(ctx, admin, []oracle.SymbolRate{{Symbol: "BTC", Rate: 1}, {Symbol: "ETH", Rate: 1}, {Symbol: "BAND", Rate: 1}}, 2, 3)

	// Assert
	require.ErrorIs(t, err, errBackend)
	require.NotErrorIs(t, err, oracle.ErrUnauthorized)
}

func TestRelay_StaleSkipsWrite(t *testing.T) {
	t.Parallel()

	ref, sub := newMockedReference(t)

	// Assert: no PutDatum is expected for a stale update
	sub.EXPECT().HasRelayer(gomock.Any(), admin).Return(true, nil)
	sub.EXPECT().GetDatum(gomock.Any(), oracle.Symbol("BTC")).Return(oracle.ReferenceDatum{Rate: 1, ResolveTime: 10}, true, nil)

	require.NoError(t, ref.Relay(context.Background(), admin, []oracle.SymbolRate{{Symbol: "BTC", Rate: 5}}, 10, 1))
}

func TestRelay_UnauthorizedTouchesNoData(t *testing.T) {
	t.Parallel()

	ref, sub := newMockedReference(t)

	// Assert: only the membership check reaches the substrate
	sub.EXPECT().HasRelayer(gomock.Any(), stranger).Return(false, nil)

	err := ref.ForceRelay(context.Background(), stranger, []oracle.SymbolRate{{Symbol: "BTC", Rate: 5}}, 10, 1)
	require.ErrorIs(t, err, oracle.ErrUnauthorized)
}

func TestGetReferenceData_BaseFailureSkipsQuote(t *testing.T) {
	t.Parallel()

	ref, sub := newMockedReference(t)

	// Assert: the quote leg is never looked up
	sub.EXPECT().GetDatum(gomock.Any(), oracle.Symbol("NOPE")).Return(oracle.ReferenceDatum{}, false, nil)

	_, err := ref.GetReferenceData(context.Background(), "NOPE", "BTC")
	require.ErrorIs(t, err, oracle.ErrPairDoesNotExist)
}

func TestGetReferenceData_BaseSymbolNeverStored(t *testing.T) {
	t.Parallel()

	ref, _ := newMockedReference(t, oracle.WithClock(oracle.ClockFunc(func() uint64 { return 42 })))

	// Assert: no substrate reads for the base unit
	p, err := ref.GetReferenceData(context.Background(), "USD", "USD")
	require.NoError(t, err)
	require.Equal(t, uint64(42), p.BaseResolveTime)
	require.Equal(t, uint64(42), p.QuoteResolveTime)
}

func TestReplaceCode_InvokesReplacer(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	replacer := NewMockCodeReplacer(ctrl)
	ref, sub := newMockedReference(t, oracle.WithCodeReplacer(replacer))
	hash := [32]byte{1, 2, 3}

	sub.EXPECT().LoadAdmin(gomock.Any()).Return(admin, true, nil)
	replacer.EXPECT().ReplaceCode(gomock.Any(), hash).Return(nil)

	ref.ReplaceCode(context.Background(), admin, hash)

	got, ok := ref.CodeHash()
	require.True(t, ok)
	require.Equal(t, hash, got)
}

func TestReplaceCode_ReplacerFailurePanics(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	replacer := NewMockCodeReplacer(ctrl)
	ref, sub := newMockedReference(t, oracle.WithCodeReplacer(replacer))

	sub.EXPECT().LoadAdmin(gomock.Any()).Return(admin, true, nil)
	replacer.EXPECT().ReplaceCode(gomock.Any(), gomock.Any()).Return(errBackend)

	require.Panics(t, func() { ref.ReplaceCode(context.Background(), admin, [32]byte{9}) })
	_, ok := ref.CodeHash()
	require.False(t, ok)
}

func TestReplaceCode_UnauthorizedSkipsReplacer(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	replacer := NewMockCodeReplacer(ctrl)
	ref, sub := newMockedReference(t, oracle.WithCodeReplacer(replacer))

	// Assert: ReplaceCode on the hook is never expected
	sub.EXPECT().LoadAdmin(gomock.Any()).Return(admin, true, nil)

	require.PanicsWithError(t, "replace code: unauthorized", func() {
		ref.ReplaceCode(context.Background(), stranger, [32]byte{9})
	})
}
