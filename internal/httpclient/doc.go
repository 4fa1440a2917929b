// Package httpclient performs the physical HTTP attempts behind a volley run.
//
// [Requester] implements runner.Attempter over a shared *http.Client:
//
//	client := httpclient.NewClient(cfg.Timeout, cfg.Concurrency)
//	requester := httpclient.NewRequester(client, httpclient.WithTracing(tp))
//	coordinator := runner.NewCoordinator(requester, runner.Options{
//		Preflight: httpclient.ResolveTarget,
//	})
//
// Each attempt gets its own request built from a runner.RequestSpec by
// [BuildRequest]. Status codes are reported as data; deciding success is left
// to the runner.
package httpclient
