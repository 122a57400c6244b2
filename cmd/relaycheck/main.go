// relaycheck probes a running relay's health endpoints. Exit code 0 means
// healthy and ready; intended for deployment checks and cron alerting.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/valyala/fasthttp"
)

func main() {
	base := flag.String("url", "http://127.0.0.1:3000", "relay base URL")
	timeout := flag.Duration("timeout", 3*time.Second, "per-request timeout")
	flag.Parse()

	client := &fasthttp.Client{
		ReadTimeout:  *timeout,
		WriteTimeout: *timeout,
	}

	for _, path := range []string{"/healthz", "/readyz"} {
		status, body, err := client.GetTimeout(nil, *base+path, *timeout)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			os.Exit(1)
		}
		if status != fasthttp.StatusOK {
			fmt.Fprintf(os.Stderr, "%s: status %d: %s\n", path, status, body)
			os.Exit(1)
		}
		fmt.Printf("%s: %s\n", path, body)
	}
}
