package marketplace

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/storeops/backend/internal/domain/integration"
)

// Errors for Shopify configuration
var (
	ErrShopifyConfigMissingDomain = errors.New("shopify: shop domain is required")
	ErrShopifyConfigMissingToken  = errors.New("shopify: access token is required")
)

// shopifyAPIVersion is the Admin API version the connector pins to
const shopifyAPIVersion = "2024-01"

// ShopifyConfig holds credentials for one store's Shopify connection
type ShopifyConfig struct {
	// ShopDomain is the myshopify.com domain, e.g. acme-retail.myshopify.com
	ShopDomain string
	// AccessToken is the Admin API access token
	AccessToken string
	// APIBaseURL overrides the shop URL, used in tests
	APIBaseURL string
	// TimeoutSeconds is the HTTP request timeout
	TimeoutSeconds int
}

// Validate checks required fields and fills defaults
func (c *ShopifyConfig) Validate() error {
	if c.ShopDomain == "" && c.APIBaseURL == "" {
		return ErrShopifyConfigMissingDomain
	}
	if c.AccessToken == "" {
		return ErrShopifyConfigMissingToken
	}
	if c.APIBaseURL == "" {
		c.APIBaseURL = "https://" + c.ShopDomain
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 30
	}
	return nil
}

func (c *ShopifyConfig) apiPath(resource string) string {
	return fmt.Sprintf("%s/admin/api/%s/%s", c.APIBaseURL, shopifyAPIVersion, resource)
}

// ShopifyConnector implements PlatformConnector for the Shopify Admin API
type ShopifyConnector struct {
	config     *ShopifyConfig
	httpClient *http.Client

	tenantConfigs map[uuid.UUID]*ShopifyConfig
	mu            sync.RWMutex
}

// NewShopifyConnector creates a Shopify connector with an optional default config
func NewShopifyConnector(config *ShopifyConfig) (*ShopifyConnector, error) {
	timeout := 30 * time.Second
	if config != nil {
		if err := config.Validate(); err != nil {
			return nil, err
		}
		timeout = time.Duration(config.TimeoutSeconds) * time.Second
	}
	return &ShopifyConnector{
		config:        config,
		httpClient:    &http.Client{Timeout: timeout},
		tenantConfigs: make(map[uuid.UUID]*ShopifyConfig),
	}, nil
}

// SetTenantConfig sets the credentials for a specific store
func (c *ShopifyConnector) SetTenantConfig(tenantID uuid.UUID, config *ShopifyConfig) error {
	if err := config.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tenantConfigs[tenantID] = config
	return nil
}

func (c *ShopifyConnector) tenantConfig(tenantID uuid.UUID) (*ShopifyConfig, error) {
	c.mu.RLock()
	config, ok := c.tenantConfigs[tenantID]
	c.mu.RUnlock()
	if ok {
		return config, nil
	}
	if c.config != nil {
		return c.config, nil
	}
	return nil, integration.ErrPlatformNotConfigured
}

// Platform returns the marketplace this connector talks to
func (c *ShopifyConnector) Platform() integration.Platform {
	return integration.PlatformShopify
}

// IsConfigured reports whether the store has credentials for Shopify
func (c *ShopifyConnector) IsConfigured(ctx context.Context, tenantID uuid.UUID) bool {
	_, err := c.tenantConfig(tenantID)
	return err == nil
}

// shopifyOrder is the wire shape of one order from the Admin API
type shopifyOrder struct {
	ID        int64  `json:"id"`
	CreatedAt string `json:"created_at"`
	Currency  string `json:"currency"`
	Customer  struct {
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
	} `json:"customer"`
	TotalPrice string `json:"total_price"`
	LineItems  []struct {
		SKU      string `json:"sku"`
		Title    string `json:"title"`
		Quantity int    `json:"quantity"`
		Price    string `json:"price"`
	} `json:"line_items"`
}

func (o *shopifyOrder) toExternalOrder() integration.ExternalOrder {
	placedAt, _ := time.Parse(time.RFC3339, o.CreatedAt)
	buyer := o.Customer.FirstName
	if o.Customer.LastName != "" {
		if buyer != "" {
			buyer += " "
		}
		buyer += o.Customer.LastName
	}
	order := integration.ExternalOrder{
		ExternalID: strconv.FormatInt(o.ID, 10),
		Platform:   integration.PlatformShopify,
		Buyer:      buyer,
		Total:      parseDecimal(o.TotalPrice),
		Currency:   o.Currency,
		PlacedAt:   placedAt,
	}
	for _, li := range o.LineItems {
		order.Lines = append(order.Lines, integration.ExternalOrderLine{
			SKU:       li.SKU,
			Title:     li.Title,
			Quantity:  li.Quantity,
			UnitPrice: parseDecimal(li.Price),
		})
	}
	return order
}

// GetOrders pulls orders created since the given instant
func (c *ShopifyConnector) GetOrders(ctx context.Context, tenantID uuid.UUID, since time.Time) ([]integration.ExternalOrder, error) {
	config, err := c.tenantConfig(tenantID)
	if err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("created_at_min", since.UTC().Format(time.RFC3339))
	query.Set("status", "any")

	body, err := c.doRequest(ctx, config, http.MethodGet, config.apiPath("orders.json")+"?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Orders []shopifyOrder `json:"orders"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("shopify: failed to parse orders response: %w", err)
	}

	orders := make([]integration.ExternalOrder, 0, len(resp.Orders))
	for i := range resp.Orders {
		orders = append(orders, resp.Orders[i].toExternalOrder())
	}
	return orders, nil
}

// GetOrder retrieves one order by its platform id
func (c *ShopifyConnector) GetOrder(ctx context.Context, tenantID uuid.UUID, externalID string) (*integration.ExternalOrder, error) {
	config, err := c.tenantConfig(tenantID)
	if err != nil {
		return nil, err
	}

	body, err := c.doRequest(ctx, config, http.MethodGet,
		config.apiPath("orders/"+url.PathEscape(externalID)+".json"), nil)
	if err != nil {
		if errors.Is(err, errNotFound) {
			return nil, integration.ErrOrderNotFound
		}
		return nil, err
	}

	var resp struct {
		Order shopifyOrder `json:"order"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("shopify: failed to parse order response: %w", err)
	}
	order := resp.Order.toExternalOrder()
	return &order, nil
}

// shopifyProduct is the simplified product shape pushed to the Admin API
type shopifyProduct struct {
	Title    string `json:"title"`
	BodyHTML string `json:"body_html,omitempty"`
	Variants []struct {
		SKU               string `json:"sku"`
		Price             string `json:"price"`
		InventoryQuantity int    `json:"inventory_quantity"`
	} `json:"variants"`
	Images []struct {
		Src string `json:"src"`
	} `json:"images,omitempty"`
}

func shopifyProductFromDTO(dto integration.ListingDTO) shopifyProduct {
	p := shopifyProduct{
		Title:    dto.Title,
		BodyHTML: dto.Description,
	}
	p.Variants = append(p.Variants, struct {
		SKU               string `json:"sku"`
		Price             string `json:"price"`
		InventoryQuantity int    `json:"inventory_quantity"`
	}{
		SKU:               dto.SKU,
		Price:             dto.Price.StringFixed(2),
		InventoryQuantity: dto.Quantity,
	})
	for _, src := range dto.ImageURLs {
		p.Images = append(p.Images, struct {
			Src string `json:"src"`
		}{Src: src})
	}
	return p
}

// CreateProduct creates a product and returns its platform id
func (c *ShopifyConnector) CreateProduct(ctx context.Context, tenantID uuid.UUID, dto integration.ListingDTO) (string, error) {
	config, err := c.tenantConfig(tenantID)
	if err != nil {
		return "", err
	}

	payload, err := json.Marshal(map[string]shopifyProduct{"product": shopifyProductFromDTO(dto)})
	if err != nil {
		return "", fmt.Errorf("shopify: failed to encode product: %w", err)
	}

	body, err := c.doRequest(ctx, config, http.MethodPost, config.apiPath("products.json"), payload)
	if err != nil {
		return "", err
	}

	var resp struct {
		Product struct {
			ID int64 `json:"id"`
		} `json:"product"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("shopify: failed to parse product response: %w", err)
	}
	return strconv.FormatInt(resp.Product.ID, 10), nil
}

// UpdateProduct updates an existing product
func (c *ShopifyConnector) UpdateProduct(ctx context.Context, tenantID uuid.UUID, externalID string, dto integration.ListingDTO) error {
	config, err := c.tenantConfig(tenantID)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(map[string]shopifyProduct{"product": shopifyProductFromDTO(dto)})
	if err != nil {
		return fmt.Errorf("shopify: failed to encode product: %w", err)
	}

	_, err = c.doRequest(ctx, config, http.MethodPut,
		config.apiPath("products/"+url.PathEscape(externalID)+".json"), payload)
	return err
}

// BulkUpdateInventory pushes quantities one sku at a time; the Admin API has
// no bulk endpoint at this version, so partial failure is per-sku
func (c *ShopifyConnector) BulkUpdateInventory(ctx context.Context, tenantID uuid.UUID, updates []integration.InventoryUpdate) (map[string]integration.SKUResult, error) {
	config, err := c.tenantConfig(tenantID)
	if err != nil {
		return nil, err
	}

	results := make(map[string]integration.SKUResult, len(updates))
	for _, u := range updates {
		payload, err := json.Marshal(map[string]any{
			"sku":       u.SKU,
			"available": u.Quantity,
		})
		if err != nil {
			results[u.SKU] = integration.SKUResult{Success: false, Message: err.Error()}
			continue
		}
		if _, err := c.doRequest(ctx, config, http.MethodPost,
			config.apiPath("inventory_levels/set.json"), payload); err != nil {
			results[u.SKU] = integration.SKUResult{Success: false, Message: err.Error()}
			continue
		}
		results[u.SKU] = integration.SKUResult{Success: true}
	}
	return results, nil
}

func (c *ShopifyConnector) doRequest(ctx context.Context, config *ShopifyConfig, method, fullURL string, payload []byte) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reader)
	if err != nil {
		return nil, fmt.Errorf("shopify: failed to create request: %w", err)
	}
	req.Header.Set("X-Shopify-Access-Token", config.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", integration.ErrConnectorUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("shopify: failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, errNotFound
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%w: HTTP %d", integration.ErrConnectorUnavailable, resp.StatusCode)
	}
	return body, nil
}
