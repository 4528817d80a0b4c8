// Loupe is an HTTP service that records every request and response passing
// through it.
//
// It wraps its routes in a recorder that writes a request record on arrival
// and exactly one completion or failure record per request, to the console
// or to the structured log. Traffic is forwarded to a configured upstream or
// answered by built-in echo routes.
//
// Usage:
//
//	# Start with defaults (echo routes on 127.0.0.1:3000, console records)
//	loupe run
//
//	# Record traffic to an upstream service
//	loupe run --upstream http://127.0.0.1:8080
//
//	# Start with a configuration file
//	loupe run --config /etc/loupe/loupe.yaml
//
//	# Check a configuration file
//	loupe validate --config loupe.yaml
//
//	# Show version information
//	loupe version
package main

func main() {
	Execute()
}
