package signer_test

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/walrusagents/blobflow/sdk/adapters/signer"
	signermocks "github.com/walrusagents/blobflow/sdk/adapters/signer/mocks"
	"github.com/walrusagents/blobflow/sdk/adapters/storage"

	"github.com/cosmos/btcutil/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

type submitFunc func(ctx context.Context, tx signer.SignedTx) (string, error)

func (f submitFunc) Submit(ctx context.Context, tx signer.SignedTx) (string, error) { return f(ctx, tx) }

func registerTx() *storage.UnsignedTx {
	return &storage.UnsignedTx{Kind: storage.TxRegisterBlob, BlobID: "blob123", Size: 42, EncodedSize: 40, Epochs: 5}
}

func TestLocalSignerSignsAndSubmits(t *testing.T) {
	var got signer.SignedTx
	s, err := signer.NewLocalSigner(testMnemonic, submitFunc(func(_ context.Context, tx signer.SignedTx) (string, error) {
		got = tx
		return "0xabc", nil
	}), nil)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(s.Address(), "0x"))
	assert.Len(t, s.Address(), 66)

	rcpt, err := s.SignAndSubmit(context.Background(), registerTx())
	require.NoError(t, err)
	assert.Equal(t, "0xabc", rcpt.Digest)
	assert.False(t, rcpt.AlreadyApplied)

	raw, err := base64.StdEncoding.DecodeString(got.TxBytes)
	require.NoError(t, err)
	assert.Equal(t, signer.TxDigest(raw), got.Digest)
	assert.Contains(t, string(raw), s.Address())

	pub, err := base64.StdEncoding.DecodeString(got.PublicKey)
	require.NoError(t, err)
	sig, err := base64.StdEncoding.DecodeString(got.Signature)
	require.NoError(t, err)
	assert.True(t, ed25519.Verify(pub, base58.Decode(got.Digest), sig))
	assert.Equal(t, signer.AddressFromPublicKey(pub), s.Address())
}

func TestLocalSignerDeterministicAddress(t *testing.T) {
	sub := submitFunc(func(context.Context, signer.SignedTx) (string, error) { return "", nil })
	a, err := signer.NewLocalSigner(testMnemonic, sub, nil)
	require.NoError(t, err)
	b, err := signer.NewLocalSigner("  "+strings.ReplaceAll(testMnemonic, " ", "  ")+"\n", sub, nil)
	require.NoError(t, err)
	assert.Equal(t, a.Address(), b.Address())

	// empty ledger digest falls back to the local one
	rcpt, err := a.SignAndSubmit(context.Background(), registerTx())
	require.NoError(t, err)
	assert.NotEmpty(t, rcpt.Digest)
}

func TestLocalSignerErrors(t *testing.T) {
	sub := submitFunc(func(context.Context, signer.SignedTx) (string, error) {
		return "", fmt.Errorf("wrapped: %w", signer.ErrAlreadyCertified)
	})

	_, err := signer.NewLocalSigner("not a mnemonic", sub, nil)
	assert.Error(t, err)
	_, err = signer.NewLocalSigner(testMnemonic, nil, nil)
	assert.Error(t, err)

	s, err := signer.NewLocalSigner(testMnemonic, sub, nil)
	require.NoError(t, err)

	t.Run("already certified counts for certify", func(t *testing.T) {
		rcpt, err := s.SignAndSubmit(context.Background(), &storage.UnsignedTx{Kind: storage.TxCertifyBlob, BlobID: "blob123"})
		require.NoError(t, err)
		assert.True(t, rcpt.AlreadyApplied)
		assert.NotEmpty(t, rcpt.Digest)
	})

	t.Run("already certified is a failure for register", func(t *testing.T) {
		_, err := s.SignAndSubmit(context.Background(), registerTx())
		var se *signer.SigningError
		require.ErrorAs(t, err, &se)
		assert.False(t, se.Declined)
	})

	t.Run("sender mismatch", func(t *testing.T) {
		tx := registerTx()
		tx.Sender = "0xsomeoneelse"
		_, err := s.SignAndSubmit(context.Background(), tx)
		assert.Error(t, err)
		assert.False(t, signer.IsDeclined(err))
	})
}

func TestSigningError(t *testing.T) {
	declined := signer.Declined("")
	assert.True(t, signer.IsDeclined(declined))
	assert.ErrorIs(t, declined, signer.ErrDeclined)
	assert.Equal(t, "signing declined", declined.Error())

	withReason := signer.Declined("closed wallet")
	assert.True(t, signer.IsDeclined(withReason))
	assert.Contains(t, withReason.Error(), "closed wallet")

	failed := &signer.SigningError{Err: io.ErrUnexpectedEOF}
	assert.False(t, signer.IsDeclined(failed))
	assert.ErrorIs(t, failed, io.ErrUnexpectedEOF)
	assert.False(t, signer.IsDeclined(errors.New("plain")))
}

func TestRPCSubmitter(t *testing.T) {
	t.Run("success after transient failure", func(t *testing.T) {
		var calls int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&calls, 1) == 1 {
				http.Error(w, "busy", http.StatusServiceUnavailable)
				return
			}
			body, _ := io.ReadAll(r.Body)
			assert.Contains(t, string(body), `"method":"ledger_executeTransaction"`)
			fmt.Fprint(w, `{"jsonrpc":"2.0","id":1,"result":{"digest":"0xdef"}}`)
		}))
		defer srv.Close()

		sub, err := signer.NewRPCSubmitter(signer.RPCConfig{Addr: srv.URL, MaxRetries: 2})
		require.NoError(t, err)
		digest, err := sub.Submit(context.Background(), signer.SignedTx{Kind: storage.TxCertifyBlob})
		require.NoError(t, err)
		assert.Equal(t, "0xdef", digest)
		assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	})

	t.Run("already certified", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprintf(w, `{"jsonrpc":"2.0","id":1,"error":{"code":%d,"message":"certificate exists"}}`, signer.CodeAlreadyCertified)
		}))
		defer srv.Close()

		sub, err := signer.NewRPCSubmitter(signer.RPCConfig{Addr: srv.URL})
		require.NoError(t, err)
		_, err = sub.Submit(context.Background(), signer.SignedTx{})
		assert.ErrorIs(t, err, signer.ErrAlreadyCertified)
	})

	t.Run("rpc error is not retried", func(t *testing.T) {
		var calls int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			atomic.AddInt32(&calls, 1)
			fmt.Fprint(w, `{"jsonrpc":"2.0","id":1,"error":{"code":-32000,"message":"insufficient gas"}}`)
		}))
		defer srv.Close()

		sub, err := signer.NewRPCSubmitter(signer.RPCConfig{Addr: srv.URL, MaxRetries: 3})
		require.NoError(t, err)
		_, err = sub.Submit(context.Background(), signer.SignedTx{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "insufficient gas")
		assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	})

	_, err := signer.NewRPCSubmitter(signer.RPCConfig{})
	assert.Error(t, err)
}

func TestPromptSigner(t *testing.T) {
	ctrl := gomock.NewController(t)
	inner := signermocks.NewMockSigner(ctrl)
	ctx := context.Background()
	tx := registerTx()

	t.Run("approved", func(t *testing.T) {
		var asked string
		p := signer.NewPromptSigner(inner, func(msg string) (bool, error) { asked = msg; return true, nil })
		inner.EXPECT().SignAndSubmit(ctx, tx).Return(signer.Receipt{Digest: "0xabc"}, nil)

		rcpt, err := p.SignAndSubmit(ctx, tx)
		require.NoError(t, err)
		assert.Equal(t, "0xabc", rcpt.Digest)
		assert.Contains(t, asked, "register")
		assert.Contains(t, asked, "blob123")
	})

	t.Run("refused", func(t *testing.T) {
		p := signer.NewPromptSigner(inner, func(string) (bool, error) { return false, nil })
		_, err := p.SignAndSubmit(ctx, tx)
		assert.True(t, signer.IsDeclined(err))
	})

	t.Run("interrupted", func(t *testing.T) {
		p := signer.NewPromptSigner(inner, func(string) (bool, error) { return false, errors.New("interrupt") })
		_, err := p.SignAndSubmit(ctx, tx)
		assert.True(t, signer.IsDeclined(err))
	})

	inner.EXPECT().Address().Return("0xme")
	assert.Equal(t, "0xme", signer.NewPromptSigner(inner, nil).Address())
}
