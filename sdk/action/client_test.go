package action_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/walrusagents/blobflow/pkg/blobkit"
	"github.com/walrusagents/blobflow/sdk/action"
	"github.com/walrusagents/blobflow/sdk/adapters/signer"
	signermocks "github.com/walrusagents/blobflow/sdk/adapters/signer/mocks"
	"github.com/walrusagents/blobflow/sdk/adapters/storage"
	storagemocks "github.com/walrusagents/blobflow/sdk/adapters/storage/mocks"
	"github.com/walrusagents/blobflow/sdk/config"
	"github.com/walrusagents/blobflow/sdk/event"
	"github.com/walrusagents/blobflow/sdk/fallback"
	"github.com/walrusagents/blobflow/sdk/flow"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Account.Address = "0xowner"
	cfg.Storage.NodeURLs = []string{"http://127.0.0.1:1"}
	cfg.Fallback.Backend = "memory"
	return cfg
}

func newTestClient(t *testing.T, sg signer.Signer) (*action.ClientImpl, *storagemocks.MockClient) {
	t.Helper()
	ctrl := gomock.NewController(t)
	sc := storagemocks.NewMockClient(ctrl)
	client, err := action.NewClient(testConfig(), sc, fallback.NewMemoryStore(time.Hour), sg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client, sc
}

func TestClientRunsFlowAndPublishesEvents(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	sg := signermocks.NewMockSigner(ctrl)
	client, sc := newTestClient(t, sg)

	bundle := &blobkit.Bundle{BlobID: "blob123"}
	regTx := &storage.UnsignedTx{Kind: storage.TxRegisterBlob}
	certTx := &storage.UnsignedTx{Kind: storage.TxCertifyBlob}
	gomock.InOrder(
		sc.EXPECT().Encode(gomock.Any(), "agent.json", gomock.Any()).Return(bundle, nil),
		sc.EXPECT().BuildRegisterTransaction(gomock.Any(), bundle, "0xowner", uint32(config.DefaultEpochs), true).Return(regTx, nil),
		sg.EXPECT().SignAndSubmit(gomock.Any(), regTx).Return(signer.Receipt{Digest: "0xabc"}, nil),
		sc.EXPECT().UploadEncoded(gomock.Any(), bundle, "0xabc").Return(&storage.UploadResult{}, nil),
		sc.EXPECT().BuildCertifyTransaction(gomock.Any(), bundle).Return(certTx, nil),
		sg.EXPECT().SignAndSubmit(gomock.Any(), certTx).Return(signer.Receipt{Digest: "0xdef"}, nil),
		sc.EXPECT().ListResultIdentifiers(gomock.Any(), bundle).Return([]string{"blob123"}, nil),
	)

	completed := make(chan event.Event, 1)
	client.SubscribeToEvents(event.FlowCompleted, func(e event.Event) { completed <- e })

	f, err := client.NewFlow(ctx)
	require.NoError(t, err)
	require.NoError(t, f.Prepare(ctx, blobkit.JSON(map[string]any{"name": "Agent"}), "agent.json", nil))
	require.NoError(t, f.RegisterOnChain(ctx))
	require.NoError(t, f.CertifyOnChain(ctx))

	select {
	case e := <-completed:
		assert.Equal(t, f.ID(), e.SessionID)
		assert.Equal(t, "0xdef", e.Data[event.KeyCertifyDigest])
	case <-time.After(2 * time.Second):
		t.Fatal("flow.completed was not published")
	}
}

func TestClientFlowRegistry(t *testing.T) {
	ctx := context.Background()
	client, _ := newTestClient(t, nil)

	a, err := client.NewFlow(ctx)
	require.NoError(t, err)
	b, err := client.NewFlow(ctx)
	require.NoError(t, err)

	got, ok := client.GetFlow(ctx, a.ID())
	require.True(t, ok)
	assert.Same(t, a, got)

	sessions := client.Flows(ctx)
	require.Len(t, sessions, 2)
	for _, s := range sessions {
		assert.Equal(t, flow.StateIdle, s.State)
	}

	require.NoError(t, client.DeleteFlow(ctx, a.ID()))
	_, ok = client.GetFlow(ctx, a.ID())
	assert.False(t, ok)
	assert.ErrorIs(t, client.DeleteFlow(ctx, a.ID()), action.ErrFlowNotFound)
	assert.Len(t, client.Flows(ctx), 1)
	assert.Equal(t, b.ID(), client.Flows(ctx)[0].ID)
}

func TestConnectSignerReachesExistingFlows(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	client, sc := newTestClient(t, nil)

	bundle := &blobkit.Bundle{BlobID: "blob123"}
	sc.EXPECT().Encode(gomock.Any(), "agent.json", gomock.Any()).Return(bundle, nil)

	f, err := client.NewFlow(ctx)
	require.NoError(t, err)
	require.NoError(t, f.Prepare(ctx, blobkit.Text("hello"), "agent.json", nil))
	require.ErrorIs(t, f.RegisterOnChain(ctx), flow.ErrSignerUnavailable)

	sg := signermocks.NewMockSigner(ctrl)
	sg.EXPECT().Address().Return("0xsigner").AnyTimes()
	client.ConnectSigner(ctx, sg)

	regTx := &storage.UnsignedTx{Kind: storage.TxRegisterBlob}
	sc.EXPECT().BuildRegisterTransaction(gomock.Any(), bundle, "0xowner", gomock.Any(), gomock.Any()).Return(regTx, nil)
	sg.EXPECT().SignAndSubmit(gomock.Any(), regTx).Return(signer.Receipt{Digest: "0xabc"}, nil)
	sc.EXPECT().UploadEncoded(gomock.Any(), bundle, "0xabc").Return(&storage.UploadResult{}, nil)

	require.NoError(t, f.RegisterOnChain(ctx))
	assert.Equal(t, flow.StateReadyToCertify, f.State())
}

func TestCheckNetwork(t *testing.T) {
	ctx := context.Background()
	client, sc := newTestClient(t, nil)

	sc.EXPECT().Ping(gomock.Any()).Return(nil)
	assert.NoError(t, client.CheckNetwork(ctx))

	sc.EXPECT().Ping(gomock.Any()).Return(storage.ErrUnreachable)
	assert.ErrorIs(t, client.CheckNetwork(ctx), storage.ErrUnreachable)
}

func TestSaveFallback(t *testing.T) {
	ctx := context.Background()
	client, _ := newTestClient(t, nil)

	saved := make(chan event.Event, 1)
	client.SubscribeToAllEvents(func(e event.Event) {
		if e.Type == event.FallbackSaved {
			saved <- e
		}
	})

	rec, err := client.SaveFallback(ctx, "agent.json", blobkit.JSON(map[string]any{"b": 1, "a": 2}), map[string]string{"env": "dev"})
	require.NoError(t, err)

	got, err := client.Fallback().Get(ctx, rec.Key)
	require.NoError(t, err)
	assert.Equal(t, `{"a":2,"b":1}`, string(got.Payload))
	assert.Equal(t, "dev", got.Tags["env"])

	select {
	case e := <-saved:
		assert.Equal(t, rec.Key, e.SessionID)
	case <-time.After(2 * time.Second):
		t.Fatal("fallback.saved was not published")
	}

	_, err = client.SaveFallback(ctx, "", blobkit.Text("x"), nil)
	assert.ErrorIs(t, err, action.ErrEmptyIdentifier)
	_, err = client.SaveFallback(ctx, "bad", blobkit.RawJSON([]byte("{nope")), nil)
	assert.ErrorIs(t, err, action.ErrInvalidPayload)
	_, err = client.SaveFallback(ctx, "bad", blobkit.Text("x"), map[string]string{"": "v"})
	assert.ErrorIs(t, err, action.ErrInvalidPayload)
}

func TestSaveFallbackWithoutStore(t *testing.T) {
	sc := storagemocks.NewMockClient(gomock.NewController(t))
	client, err := action.NewClient(testConfig(), sc, nil, nil, nil)
	require.NoError(t, err)
	defer client.Close()

	_, err = client.SaveFallback(context.Background(), "agent", blobkit.Text("x"), nil)
	assert.ErrorIs(t, err, action.ErrNoFallbackStore)
}

func TestClose(t *testing.T) {
	client, _ := newTestClient(t, nil)
	require.NoError(t, client.Close())
	require.NoError(t, client.Close())

	_, err := client.NewFlow(context.Background())
	assert.ErrorIs(t, err, action.ErrClientClosed)
}

func TestNewDefaultClient(t *testing.T) {
	client, err := action.NewDefaultClient(context.Background(), testConfig(), nil, nil)
	require.NoError(t, err)
	defer client.Close()
	assert.NotNil(t, client.Fallback())

	bad := testConfig()
	bad.Storage.NodeURLs = nil
	_, err = action.NewDefaultClient(context.Background(), bad, nil, nil)
	assert.Error(t, err)
}

func TestNewLocalSigner(t *testing.T) {
	cfg := testConfig()
	cfg.Account.MnemonicEnv = "BLOBFLOW_TEST_MNEMONIC"
	cfg.Ledger.RPCAddr = "http://127.0.0.1:1"

	t.Setenv("BLOBFLOW_TEST_MNEMONIC", "")
	_, err := action.NewLocalSigner(cfg, nil)
	assert.ErrorIs(t, err, action.ErrNoMnemonic)

	t.Setenv("BLOBFLOW_TEST_MNEMONIC", testMnemonic)
	sg, err := action.NewLocalSigner(cfg, nil)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(sg.Address(), "0x"))

	cfg.Ledger.RPCAddr = ""
	_, err = action.NewLocalSigner(cfg, nil)
	assert.Error(t, err)
}
