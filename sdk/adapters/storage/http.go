package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/walrusagents/blobflow/pkg/blobkit"
	"github.com/walrusagents/blobflow/pkg/uploadmetrics"
	"github.com/walrusagents/blobflow/sdk/log"

	"github.com/cenkalti/backoff/v4"
	"github.com/cosmos/btcutil/base58"
	"github.com/patrickmn/go-cache"
	"go.uber.org/ratelimit"
	"golang.org/x/sync/errgroup"
)

const (
	defaultParallelism = 8
	defaultRPS         = 50
	defaultTimeout     = 30 * time.Second
	defaultMaxRetries  = 3
	defaultUploadTTL   = 24 * time.Hour
	maxErrorBody       = 4 << 10

	headerRegisterDigest = "X-Register-Digest"
	headerSliverHash     = "X-Sliver-Hash"
)

// HTTPConfig configures HTTPClient.
type HTTPConfig struct {
	NodeURLs          []string
	AggregatorURL     string
	ShardCount        int
	MaxBlobSize       int64
	Parallelism       int
	RequestsPerSecond int
	Timeout           time.Duration
	MaxRetries        uint64
	Quorum            QuorumPolicy
	HTTPClient        *http.Client
	Logger            log.Logger

	// UploadStateTTL bounds how long acknowledged confirmations wait for the
	// certify step. Confirmations are also dropped once the blob is certified.
	UploadStateTTL time.Duration
}

type uploadState struct {
	registerDigest string
	confirmations  []Confirmation
}

// HTTPClient talks to storage nodes over their REST interface. Slivers are
// assigned round-robin and move to the next node when one keeps failing.
type HTTPClient struct {
	cfg     HTTPConfig
	http    *http.Client
	limiter ratelimit.Limiter
	logger  log.Logger

	uploads *cache.Cache // blob id -> *uploadState
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient validates cfg and fills in defaults.
func NewHTTPClient(cfg HTTPConfig) (*HTTPClient, error) {
	if len(cfg.NodeURLs) == 0 {
		return nil, fmt.Errorf("at least one storage node url is required")
	}
	nodes := make([]string, 0, len(cfg.NodeURLs))
	for _, n := range cfg.NodeURLs {
		u, err := url.Parse(n)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("invalid storage node url %q", n)
		}
		nodes = append(nodes, strings.TrimRight(n, "/"))
	}
	cfg.NodeURLs = nodes
	cfg.AggregatorURL = strings.TrimRight(cfg.AggregatorURL, "/")

	if cfg.Parallelism <= 0 {
		cfg.Parallelism = defaultParallelism
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = defaultRPS
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.UploadStateTTL <= 0 {
		cfg.UploadStateTTL = defaultUploadTTL
	}
	if cfg.Quorum == nil {
		cfg.Quorum = ThresholdQuorum{}
	}
	if cfg.Logger == nil {
		cfg.Logger = log.NewNoopLogger()
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}

	return &HTTPClient{
		cfg:     cfg,
		http:    hc,
		limiter: ratelimit.New(cfg.RequestsPerSecond),
		logger:  cfg.Logger,
		uploads: cache.New(cfg.UploadStateTTL, cfg.UploadStateTTL/2),
	}, nil
}

func (c *HTTPClient) Encode(payload blobkit.Payload, identifier string, tags map[string]string) (*blobkit.Bundle, error) {
	return blobkit.Encode(payload, identifier, tags, blobkit.Options{
		ShardCount:  c.cfg.ShardCount,
		MaxBlobSize: c.cfg.MaxBlobSize,
	})
}

func (c *HTTPClient) BuildRegisterTransaction(ctx context.Context, bundle *blobkit.Bundle, owner string, epochs uint32, deletable bool) (*UnsignedTx, error) {
	if bundle == nil {
		return nil, ErrNilBundle
	}
	if owner == "" {
		return nil, fmt.Errorf("owner address is required")
	}
	if epochs == 0 {
		return nil, fmt.Errorf("epochs must be positive")
	}

	c.logger.Debug(ctx, "Building register transaction", "blobID", bundle.BlobID, "owner", owner, "epochs", epochs)
	return &UnsignedTx{
		Kind:        TxRegisterBlob,
		Sender:      owner,
		BlobID:      bundle.BlobID,
		RootHash:    base58.Encode(bundle.RootHash),
		Size:        bundle.Size,
		EncodedSize: bundle.EncodedSize,
		Epochs:      epochs,
		Deletable:   deletable,
	}, nil
}

func (c *HTTPClient) UploadEncoded(ctx context.Context, bundle *blobkit.Bundle, registerDigest string) (*UploadResult, error) {
	if bundle == nil {
		return nil, ErrNilBundle
	}
	if registerDigest == "" {
		return nil, ErrMissingRegisterDigest
	}

	key := uploadmetrics.CaptureKey(ctx, bundle.BlobID)
	start := time.Now()
	total := len(bundle.Slivers)
	required := c.cfg.Quorum.Required(total)
	c.logger.Info(ctx, "Uploading slivers", "blobID", bundle.BlobID, "slivers", total, "required", required)

	var (
		mu    sync.Mutex
		confs []Confirmation
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Parallelism)
	for i := range bundle.Slivers {
		sliver := bundle.Slivers[i]
		g.Go(func() error {
			conf, err := c.storeSliver(gctx, key, bundle.BlobID, registerDigest, sliver)
			if err != nil {
				// a failed sliver only counts against the quorum
				if gctx.Err() != nil {
					return gctx.Err()
				}
				return nil
			}
			mu.Lock()
			confs = append(confs, conf)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("upload interrupted: %w", err)
	}

	acked := len(confs)
	uploadmetrics.SetUploadSummary(key, acked, required, time.Since(start).Milliseconds())
	if acked < required {
		c.logger.Warn(ctx, "Upload quorum not reached", "blobID", bundle.BlobID, "acked", acked, "required", required)
		return nil, fmt.Errorf("%w: %d of %d slivers acknowledged, %d required", ErrQuorumNotReached, acked, total, required)
	}

	sortConfirmations(confs)
	c.uploads.SetDefault(bundle.BlobID, &uploadState{registerDigest: registerDigest, confirmations: confs})

	c.logger.Info(ctx, "Upload acknowledged", "blobID", bundle.BlobID, "acked", acked, "required", required)
	return &UploadResult{Acked: acked, Required: required, Confirmations: confs}, nil
}

// storeSliver tries the sliver's home node first, then the others.
func (c *HTTPClient) storeSliver(ctx context.Context, captureKey, blobID, registerDigest string, s blobkit.Sliver) (Confirmation, error) {
	nodes := c.cfg.NodeURLs
	var lastErr error
	for k := 0; k < len(nodes); k++ {
		node := nodes[(s.Index+k)%len(nodes)]
		begin := time.Now()
		attempts := 0

		var sig string
		b := backoff.WithContext(backoff.WithMaxRetries(newBackOff(), c.cfg.MaxRetries), ctx)
		err := backoff.RetryNotify(func() error {
			attempts++
			c.limiter.Take()
			var err error
			sig, err = c.putSliver(ctx, node, blobID, registerDigest, s)
			return err
		}, b, func(err error, d time.Duration) {
			c.logger.Debug(ctx, "Retrying sliver upload", "node", node, "sliver", s.Index, "backoff", d, "error", err)
		})

		call := uploadmetrics.Call{
			Node:       node,
			Sliver:     s.Index,
			Bytes:      len(s.Data),
			Attempts:   attempts,
			Success:    err == nil,
			DurationMS: time.Since(begin).Milliseconds(),
		}
		if err != nil {
			call.Error = err.Error()
		}
		uploadmetrics.RecordUpload(captureKey, call)

		if err == nil {
			return Confirmation{Node: node, Sliver: s.Index, Signature: sig}, nil
		}
		if ctx.Err() != nil {
			return Confirmation{}, ctx.Err()
		}
		c.logger.Warn(ctx, "Sliver upload failed on node", "node", node, "sliver", s.Index, "error", err)
		lastErr = err
	}
	return Confirmation{}, fmt.Errorf("sliver %d: %w", s.Index, lastErr)
}

type sliverResponse struct {
	Signature string `json:"signature"`
}

func (c *HTTPClient) putSliver(ctx context.Context, node, blobID, registerDigest string, s blobkit.Sliver) (string, error) {
	endpoint := fmt.Sprintf("%s/v1/blobs/%s/slivers/%d", node, url.PathEscape(blobID), s.Index)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, bytes.NewReader(s.Data))
	if err != nil {
		return "", backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set(headerRegisterDigest, registerDigest)
	req.Header.Set(headerSliverHash, s.Hash)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return "", err
	}
	var out sliverResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", backoff.Permanent(fmt.Errorf("decode sliver response: %w", err))
	}
	if out.Signature == "" {
		return "", backoff.Permanent(fmt.Errorf("node returned an empty confirmation"))
	}
	return out.Signature, nil
}

func (c *HTTPClient) BuildCertifyTransaction(ctx context.Context, bundle *blobkit.Bundle) (*UnsignedTx, error) {
	if bundle == nil {
		return nil, ErrNilBundle
	}
	v, ok := c.uploads.Get(bundle.BlobID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotUploaded, bundle.BlobID)
	}
	st := v.(*uploadState)

	c.logger.Debug(ctx, "Building certify transaction", "blobID", bundle.BlobID, "confirmations", len(st.confirmations))
	confs := make([]Confirmation, len(st.confirmations))
	copy(confs, st.confirmations)
	return &UnsignedTx{
		Kind:           TxCertifyBlob,
		BlobID:         bundle.BlobID,
		RootHash:       base58.Encode(bundle.RootHash),
		Size:           bundle.Size,
		EncodedSize:    bundle.EncodedSize,
		RegisterDigest: st.registerDigest,
		Confirmations:  confs,
	}, nil
}

type statusResponse struct {
	Status       string `json:"status"`
	BlobObjectID string `json:"blob_object_id"`
}

const statusCertified = "certified"

// ListResultIdentifiers returns the blob id plus the ledger object id the
// aggregator reports for it. Without an aggregator only the blob id is known.
// A certified blob no longer needs its confirmations, so they are dropped.
func (c *HTTPClient) ListResultIdentifiers(ctx context.Context, bundle *blobkit.Bundle) ([]string, error) {
	if bundle == nil {
		return nil, ErrNilBundle
	}
	if c.cfg.AggregatorURL == "" {
		c.Forget(bundle.BlobID)
		return []string{bundle.BlobID}, nil
	}

	endpoint := fmt.Sprintf("%s/v1/blobs/%s/status", c.cfg.AggregatorURL, url.PathEscape(bundle.BlobID))
	var st statusResponse
	b := backoff.WithContext(backoff.WithMaxRetries(newBackOff(), c.cfg.MaxRetries), ctx)
	err := backoff.Retry(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode == http.StatusNotFound {
			return backoff.Permanent(fmt.Errorf("%w: %s", ErrNotCertified, bundle.BlobID))
		}
		if err := checkStatus(resp); err != nil {
			return err
		}
		return json.NewDecoder(resp.Body).Decode(&st)
	}, b)
	if err != nil {
		return nil, fmt.Errorf("query blob status: %w", err)
	}
	if st.Status != statusCertified {
		return nil, fmt.Errorf("%w: status %q", ErrNotCertified, st.Status)
	}

	c.Forget(bundle.BlobID)
	ids := []string{bundle.BlobID}
	if st.BlobObjectID != "" && st.BlobObjectID != bundle.BlobID {
		ids = append(ids, st.BlobObjectID)
	}
	return ids, nil
}

func (c *HTTPClient) Ping(ctx context.Context) error {
	var errs []string
	for _, node := range c.cfg.NodeURLs {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, node+"/v1/health", nil)
		if err != nil {
			return err
		}
		resp, err := c.http.Do(req)
		if err != nil {
			errs = append(errs, err.Error())
			continue
		}
		_ = resp.Body.Close()
		if resp.StatusCode < http.StatusInternalServerError {
			return nil
		}
		errs = append(errs, node+": "+resp.Status)
	}
	return fmt.Errorf("%w: %s", ErrUnreachable, strings.Join(errs, "; "))
}

// Forget drops the recorded upload state for a blob.
func (c *HTTPClient) Forget(blobID string) {
	c.uploads.Delete(blobID)
}

func newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = time.Minute
	return b
}

// checkStatus turns non-2xx answers into errors. 4xx ones are not retried.
func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	err := fmt.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
		return backoff.Permanent(err)
	}
	return err
}

func sortConfirmations(c []Confirmation) {
	sort.Slice(c, func(i, j int) bool { return c[i].Sliver < c[j].Sliver })
}
