package probe

import (
	"context"
	"io"
	"net/http"
	"sync/atomic"

	"github.com/use-agent/sitelens/models"
	"golang.org/x/sync/errgroup"
)

// linkProbeWorkers caps concurrent probe requests across both samples.
const linkProbeWorkers = 4

// maxDrainBody bounds how much of a GET fallback body is drained before
// the connection is reused.
const maxDrainBody = 64 << 10

// redirectCounterKey carries the per-request redirect counter through the
// shared client's CheckRedirect hook.
type redirectCounterKey struct{}

// CheckLinks probes a sample of internal and external links and reports
// their final status. HEAD is tried first; servers that reject HEAD get a
// GET retry with the body discarded. Individual probe failures are
// recorded per link, never propagated.
func (p *Prober) CheckLinks(ctx context.Context, internal, external []string) *models.LinkChecks {
	internal = sample(internal, p.cfg.LinkSample)
	external = sample(external, p.cfg.LinkSample)

	checks := &models.LinkChecks{
		Internal: make([]models.LinkStatus, len(internal)),
		External: make([]models.LinkStatus, len(external)),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(linkProbeWorkers)

	for i, link := range internal {
		i, link := i, link
		g.Go(func() error {
			checks.Internal[i] = p.probeOne(gctx, link)
			return nil
		})
	}
	for i, link := range external {
		i, link := i, link
		g.Go(func() error {
			checks.External[i] = p.probeOne(gctx, link)
			return nil
		})
	}
	_ = g.Wait()

	return checks
}

// probeOne checks a single URL with HEAD, falling back to GET when the
// server rejects HEAD outright.
func (p *Prober) probeOne(ctx context.Context, link string) models.LinkStatus {
	status := models.LinkStatus{URL: link}

	resp, redirects, err := p.do(ctx, http.MethodHead, link)
	if err != nil {
		return models.LinkStatus{URL: link, Error: err.Error()}
	}
	resp.Body.Close()

	// 405 is the honest rejection; some servers answer HEAD with 403 or
	// 400 while serving GET fine.
	if resp.StatusCode == http.StatusMethodNotAllowed ||
		resp.StatusCode == http.StatusForbidden ||
		resp.StatusCode == http.StatusBadRequest {
		getResp, getRedirects, getErr := p.do(ctx, http.MethodGet, link)
		if getErr == nil {
			_, _ = io.Copy(io.Discard, io.LimitReader(getResp.Body, maxDrainBody))
			getResp.Body.Close()
			resp, redirects = getResp, getRedirects
		}
	}

	status.Status = resp.StatusCode
	status.FinalURL = resp.Request.URL.String()
	status.Redirects = redirects
	return status
}

func (p *Prober) do(ctx context.Context, method, link string) (*http.Response, int, error) {
	counter := &atomic.Int32{}
	ctx = context.WithValue(ctx, redirectCounterKey{}, counter)

	req, err := http.NewRequestWithContext(ctx, method, link, nil)
	if err != nil {
		return nil, 0, err
	}
	browserHeaders(req)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	return resp, int(counter.Load()), nil
}

func sample(links []string, n int) []string {
	if len(links) > n {
		return links[:n]
	}
	return links
}
