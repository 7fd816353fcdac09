package integration

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/storeops/backend/internal/domain/catalog"
	"github.com/storeops/backend/internal/domain/integration"
)

// Platform title limits. Titles beyond the limit are cut at a word
// boundary where possible.
const (
	ebayTitleLimit    = 80
	shopifyTitleLimit = 255
)

// CatalogListingTransformer builds platform listing payloads from the
// local catalog. Per-platform rules live here so connectors stay thin
// wire adapters.
type CatalogListingTransformer struct {
	products catalog.ProductRepository
}

// NewCatalogListingTransformer creates the transformer
func NewCatalogListingTransformer(products catalog.ProductRepository) *CatalogListingTransformer {
	return &CatalogListingTransformer{products: products}
}

// Transform loads the product and shapes it for the target platform
func (t *CatalogListingTransformer) Transform(ctx context.Context, tenantID, productID uuid.UUID, platform integration.Platform) (*integration.ListingDTO, error) {
	if !platform.IsValid() {
		return nil, fmt.Errorf("%w: %s", integration.ErrPlatformNotFound, platform)
	}

	product, err := t.products.FindByIDForTenant(ctx, tenantID, productID)
	if err != nil {
		return nil, fmt.Errorf("loading product %s: %w", productID, err)
	}

	dto := &integration.ListingDTO{
		SKU:         product.SKU,
		Title:       product.Name,
		Description: product.Description,
		Price:       product.Price,
		Quantity:    product.QuantityOnHand,
	}
	if dto.Description == "" {
		dto.Description = product.Name
	}

	switch platform {
	case integration.PlatformEbay:
		dto.Title = truncateTitle(dto.Title, ebayTitleLimit)
		// eBay requires a condition on every offer; the catalog only
		// carries new stock.
		dto.Attributes = map[string]any{"condition": "NEW"}
	case integration.PlatformShopify:
		dto.Title = truncateTitle(dto.Title, shopifyTitleLimit)
	}

	return dto, nil
}

func truncateTitle(title string, limit int) string {
	if len(title) <= limit {
		return title
	}
	cut := title[:limit]
	if idx := strings.LastIndex(cut, " "); idx > limit/2 {
		cut = cut[:idx]
	}
	return strings.TrimSpace(cut)
}
