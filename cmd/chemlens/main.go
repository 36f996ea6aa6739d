// chemlens is the offline CLI: resolve procurement descriptions against the
// configured registry without a running API server or database.
package main

import "github.com/chemlens/chemlens/internal/interfaces/cli"

func main() {
	cli.Execute()
}
