// admingate — privileged-operation gateway.
// Fronts admin APIs with token verification, rate limiting, schema
// validation, injection detection, and a hash-chained audit trail.
package main

import "github.com/ppiankov/admingate/internal/cli"

func main() {
	cli.Execute()
}
