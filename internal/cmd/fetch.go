package cmd

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"
	"github.com/spf13/cobra"

	"github.com/Iron-Ham/logscope/internal/capture"
	"github.com/Iron-Ham/logscope/internal/errors"
	"github.com/Iron-Ham/logscope/internal/logentry"
	"github.com/Iron-Ham/logscope/internal/viewer"
)

const fetchTag = "fetch"

var fetchCmd = &cobra.Command{
	Use:   "fetch <url>...",
	Short: "Issue HTTP requests and record the exchanges",
	Long: `Issue one request per URL, concurrently, through the capturing transport.
Each exchange is stored as a network entry; transport failures are also
logged as error entries tagged "fetch".

Example:
  logscope fetch https://example.com/health https://example.com/api/status
  logscope fetch -X POST -d '{"ping":true}' -H 'Content-Type: application/json' https://example.com/api`,
	Args: cobra.MinimumNArgs(1),
	RunE: runFetch,
}

var (
	fetchMethod      string
	fetchData        string
	fetchHeaders     []string
	fetchConcurrency int
	fetchTimeout     time.Duration
)

func init() {
	rootCmd.AddCommand(fetchCmd)

	fetchCmd.Flags().StringVarP(&fetchMethod, "method", "X", http.MethodGet, "HTTP method")
	fetchCmd.Flags().StringVarP(&fetchData, "data", "d", "", "Request body")
	fetchCmd.Flags().StringArrayVarP(&fetchHeaders, "header", "H", nil, "Request header 'Name: value' (repeatable)")
	fetchCmd.Flags().IntVar(&fetchConcurrency, "concurrency", 4, "Maximum requests in flight")
	fetchCmd.Flags().DurationVar(&fetchTimeout, "timeout", 30*time.Second, "Per-request timeout")
}

func runFetch(cmd *cobra.Command, args []string) error {
	if fetchConcurrency < 1 {
		return errors.NewValidationError("must be at least 1").WithField("concurrency").WithValue(fetchConcurrency)
	}
	header, err := parseHeaders(fetchHeaders)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	opts := []capture.Option{
		capture.WithDiagnostics(a.log),
		capture.WithEventBus(a.bus),
		capture.WithMaxBodySize(a.cfg.Network.MaxBodySize),
	}
	transport := capture.NewTransport(a.network, nil, opts...)
	client := transport.Client()
	client.Timeout = fetchTimeout
	logger := capture.NewLogger(a.logs, opts...).WithTag(fetchTag)

	out := cmd.OutOrStdout()
	var mu sync.Mutex

	p := pool.New().WithContext(ctx).WithMaxGoroutines(fetchConcurrency)
	for _, url := range args {
		url := url
		p.Go(func(ctx context.Context) error {
			entry, err := fetchOne(ctx, client, url, header)
			if err != nil {
				logger.Error("request failed", "url", url, "method", fetchMethod, "error", err.Error())
			}

			mu.Lock()
			defer mu.Unlock()
			if entry != nil {
				fmt.Fprintln(out, viewer.RenderNetwork(*entry))
			} else {
				fmt.Fprintf(out, "%s %s: %v\n", fetchMethod, url, err)
			}
			return err
		})
	}
	err = p.Wait()

	if n := transport.Failures(); n > 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %d exchanges could not be stored", n)
		if transient := transport.TransientFailures(); transient > 0 {
			fmt.Fprintf(cmd.ErrOrStderr(), " (%d because the store was busy; rerun to retry)", transient)
		}
		fmt.Fprintln(cmd.ErrOrStderr())
	}
	if err != nil {
		return fmt.Errorf("some requests failed: %w", err)
	}
	return nil
}

// fetchOne performs one request and returns a summary of the exchange for
// display. The stored entry is produced by the capturing transport.
func fetchOne(ctx context.Context, client *http.Client, url string, header http.Header) (*logentry.NetworkLogEntry, error) {
	var body io.Reader
	if fetchData != "" {
		body = strings.NewReader(fetchData)
	}
	req, err := http.NewRequestWithContext(ctx, fetchMethod, url, body)
	if err != nil {
		return nil, errors.NewValidationError("invalid request").WithField("url").WithValue(url).WithCause(err)
	}
	req.Header = header.Clone()

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return &logentry.NetworkLogEntry{
			Timestamp: start,
			URL:       url,
			Method:    req.Method,
			Duration:  time.Since(start),
			Error:     err.Error(),
		}, err
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	return &logentry.NetworkLogEntry{
		Timestamp:    start,
		URL:          url,
		Method:       req.Method,
		ResponseCode: logentry.Ptr(resp.StatusCode),
		Duration:     time.Since(start),
	}, nil
}

func parseHeaders(values []string) (http.Header, error) {
	header := make(http.Header, len(values))
	for _, v := range values {
		name, value, ok := strings.Cut(v, ":")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, errors.NewValidationError(fmt.Sprintf("expected 'Name: value', got %q", v)).WithField("header")
		}
		header.Add(strings.TrimSpace(name), strings.TrimSpace(value))
	}
	return header, nil
}
