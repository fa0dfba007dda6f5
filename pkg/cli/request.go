package cli

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/getmockd/protomock/pkg/client"
	"github.com/getmockd/protomock/pkg/codec"
)

// DefaultURL is the stub server the request command talks to by default.
const DefaultURL = "http://localhost:8080"

type requestFlags struct {
	url      string
	headers  []string
	timeout  time.Duration
	insecure bool
}

func newRequestCommand() *cobra.Command {
	var flags requestFlags

	cmd := &cobra.Command{
		Use:   "request <path> [json]",
		Short: "Send a JSON message to a running stub server",
		Long: `Encode the JSON payload as a google.protobuf.Value, POST it to <path>
on the stub server and print the decoded response.

The payload defaults to {}. When the response carries a streamSize
header other than 1 it is printed after the body.`,
		Example: `  protomock request /echo.Echo/Say '{"message":"hi"}'
  protomock request /echo.Echo/Say --url https://localhost:8443 --insecure -H 'X-Trace: abc'`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := "{}"
			if len(args) == 2 {
				payload = args[1]
			}
			return runRequest(cmd, args[0], payload, flags)
		},
	}

	cmd.Flags().StringVar(&flags.url, "url", DefaultURL, "Base URL of the stub server")
	cmd.Flags().StringArrayVarP(&flags.headers, "header", "H", nil, `Request header as "Name: value" (repeatable)`)
	cmd.Flags().DurationVar(&flags.timeout, "timeout", 10*time.Second, "Request timeout")
	cmd.Flags().BoolVar(&flags.insecure, "insecure", false, "Skip TLS certificate verification")

	return cmd
}

func runRequest(cmd *cobra.Command, path, payload string, flags requestFlags) error {
	headers, err := parseHeaders(flags.headers)
	if err != nil {
		return err
	}

	msg := &structpb.Value{}
	if err := codec.Default.Unmarshal([]byte(payload), msg); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}

	httpClient := &http.Client{}
	if flags.insecure {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in for self-signed servers
		httpClient.Transport = transport
	}
	baseURL := flags.url
	dispatcher := client.New(func() (string, error) { return baseURL, nil }, client.WithHTTPClient(httpClient))

	ctx, cancel := context.WithTimeout(cmd.Context(), flags.timeout)
	defer cancel()

	resp, err := dispatcher.Request(ctx, path, msg, headers)
	if err != nil {
		return err
	}

	out := &structpb.Value{}
	if err := resp.Into(out); err != nil {
		return err
	}
	data, err := codec.New(codec.WithIndent("  ")).ToJSON(out)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))

	n, err := resp.StreamSize()
	if err != nil {
		return err
	}
	if n != 1 {
		fmt.Fprintf(cmd.OutOrStdout(), "streamSize: %d\n", n)
	}
	return nil
}

func parseHeaders(raw []string) (map[string]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	headers := make(map[string]string, len(raw))
	for _, h := range raw {
		name, value, ok := strings.Cut(h, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid header %q: expected \"Name: value\"", h)
		}
		headers[name] = strings.TrimSpace(value)
	}
	return headers, nil
}
