// Gatekeeper is the request gatekeeper in front of the retail platform's
// services.
//
// Every request passes an ordered pipeline: request id, logging, tracing,
// metrics, bearer token authentication, tenant binding and fixed-window
// rate limiting. Authentication and rate limiting fail open.
//
// Usage:
//
//	# Run the gatekeeper
//	gatekeeper serve --config configs/gatekeeper.yaml
//
//	# Check a configuration file
//	gatekeeper config validate --config configs/gatekeeper.yaml
//
//	# Issue a token for local testing
//	gatekeeper token issue --subject alice@example.com --user-id u-1 --tenant-id t-1 --role customer
//
//	# Call the configured client base URL through the resilience layer
//	gatekeeper fetch /api/products --param page=1 --tenant t-1
package main

func main() {
	Execute()
}
