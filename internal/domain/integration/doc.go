// Package integration contains the Integration bounded context.
// This context defines the narrow capability surface the agent engine sees
// of every external collaborator.
//
// Key concepts:
//   - PlatformConnector: Port interface for marketplace platforms (eBay-style, Shopify-style)
//   - Listing: Local mirror of a product's presence on one platform
//   - ImportedOrderRecord: Dedup record for orders pulled from platforms
//   - PriceIntelligence: Port for market price search
//   - TextGenerator: Port for best-effort generative summaries
//   - NotificationDispatcher: Port for fire-and-forget notifications
//
// Design Pattern: Ports & Adapters
//   - Ports (interfaces) are defined here in the domain layer
//   - Adapters (implementations) are in the infrastructure layer
package integration
